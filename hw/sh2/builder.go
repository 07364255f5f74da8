package sh2

import "github.com/rs/zerolog"

// Builder can build CPUs.
type Builder struct {
	name            string
	instrCycles     uint64
	interruptCycles uint64
	breaker         BreakRaiser
	logger          zerolog.Logger
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		name:            "SH2",
		instrCycles:     1,
		interruptCycles: 13,
		logger:          zerolog.Nop(),
	}
}

// WithName sets the name of the CPU.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithInstructionCycles sets how many cycles each instruction takes.
func (b Builder) WithInstructionCycles(cycles uint64) Builder {
	b.instrCycles = cycles
	return b
}

// WithInterruptCycles sets how many cycles accepting an interrupt takes.
func (b Builder) WithInterruptCycles(cycles uint64) Builder {
	b.interruptCycles = cycles
	return b
}

// WithBreakRaiser sets where breakpoint hits are reported.
func (b Builder) WithBreakRaiser(r BreakRaiser) Builder {
	b.breaker = r
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a CPU in its power-on state.
func (b Builder) Build() *CPU {
	if b.instrCycles == 0 {
		panic("sh2: instruction cycles must be greater than zero")
	}

	c := &CPU{
		name:            b.name,
		instrCycles:     b.instrCycles,
		interruptCycles: b.interruptCycles,
		breakpoints:     make(map[uint64]struct{}),
		breaker:         b.breaker,
		logger:          b.logger.With().Str("cpu", b.name).Logger(),
	}

	c.Reset(true)

	return c
}
