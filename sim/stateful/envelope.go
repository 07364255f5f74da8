// Package stateful stores and restores save states.
package stateful

import (
	"errors"
	"fmt"
	"io"
)

// Format tags every save file written by this package.
const Format = "saturn-state"

// Version is bumped whenever the layout of a saved state changes.
const Version = 1

var (
	// ErrMalformed is returned when a save file cannot be decoded.
	ErrMalformed = errors.New("stateful: malformed state")

	// ErrIncompatible is returned when a save file was written with a
	// different format or version.
	ErrIncompatible = errors.New("stateful: incompatible state")
)

// A Holder is something whose state can be saved and restored. Restoring is
// split into validation and loading so that an aggregate can check every part
// before it modifies any.
type Holder[S any] interface {
	SaveState(state *S)
	ValidateState(state *S) error
	LoadState(state *S)
}

// Envelope wraps a state with the information needed to reject files from
// other builds.
type Envelope[S any] struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	State   S      `json:"state"`
}

// Write saves the state of h through the codec.
func Write[S any](w io.Writer, codec Codec, h Holder[S]) error {
	env := Envelope[S]{Format: Format, Version: Version}
	h.SaveState(&env.State)

	return codec.Encode(w, &env)
}

// Read decodes a state through the codec and loads it into h. Nothing is
// loaded unless the file decodes and h accepts the state.
func Read[S any](r io.Reader, codec Codec, h Holder[S]) error {
	var env Envelope[S]

	err := codec.Decode(r, &env)
	if err != nil {
		return err
	}

	if env.Format != Format || env.Version != Version {
		return fmt.Errorf("%w: %s v%d", ErrIncompatible, env.Format, env.Version)
	}

	err = h.ValidateState(&env.State)
	if err != nil {
		return err
	}

	h.LoadState(&env.State)

	return nil
}

// ValidateAll runs each check and returns the first failure.
func ValidateAll(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}
