package stateful

import (
	"encoding/json"
	"fmt"
	"io"
)

// Codec determines how states are encoded.
type Codec interface {
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// JSONCodec stores states as JSON documents.
type JSONCodec struct {
	// Indent makes the output readable by humans.
	Indent bool
}

// Encode writes v as JSON to the provided writer.
func (c JSONCodec) Encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if c.Indent {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}

// Decode reads a JSON document into v. Unknown fields are rejected so a state
// written by a different build does not half load.
func (c JSONCodec) Decode(r io.Reader, v any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return nil
}
