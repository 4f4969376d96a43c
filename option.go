package milpa

import (
	"time"

	"github.com/costela/milpa/internal/bnb"
	"github.com/costela/milpa/internal/presolve"
	"github.com/costela/milpa/internal/simplex"
)

type Option func(*Model) error

func WithLogger(logger Logger) Option {
	return func(m *Model) error {
		m.logger = logger

		return nil
	}
}

// Branching selects the variable branch-and-bound splits on.
type Branching int

const (
	MostFractional Branching = iota
	FirstFractional
)

func (b Branching) String() string {
	return bnb.Branching(b).String()
}

// SolveConfig holds the settings of a single solve.
type SolveConfig struct {
	Presolve           bool
	PresolveIterations int
	// TimeLimit is the wall clock budget of the solve; zero means none.
	TimeLimit time.Duration
	// NodeLimit caps the number of branch-and-bound nodes; zero means none.
	NodeLimit int
	// IterationLimit caps simplex iterations per LP; zero picks a limit
	// based on the problem size.
	IterationLimit       int
	Threads              int
	Tolerance            float64
	FeasibilityTolerance float64
	IntegralityTolerance float64
	MIPGap               float64
	Branching            Branching
	PoolSize             int
}

const DefaultPoolSize = 10

// DefaultSolveConfig returns the settings used when no SolveOption is
// given.
func DefaultSolveConfig() SolveConfig {
	return SolveConfig{
		Presolve:             true,
		PresolveIterations:   presolve.DefaultMaxIterations,
		Threads:              1,
		Tolerance:            simplex.DefaultTolerance,
		FeasibilityTolerance: simplex.DefaultFeasibilityTolerance,
		IntegralityTolerance: bnb.DefaultIntegralityTolerance,
		Branching:            MostFractional,
		PoolSize:             DefaultPoolSize,
	}
}

type SolveOption func(*SolveConfig)

func newSolveConfig(opts []SolveOption) SolveConfig {
	cfg := DefaultSolveConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConfig replaces all settings at once.
func WithConfig(cfg SolveConfig) SolveOption {
	return func(c *SolveConfig) { *c = cfg }
}

func WithPresolve(enabled bool) SolveOption {
	return func(c *SolveConfig) { c.Presolve = enabled }
}

func WithPresolveIterations(n int) SolveOption {
	return func(c *SolveConfig) { c.PresolveIterations = n }
}

func WithTimeLimit(d time.Duration) SolveOption {
	return func(c *SolveConfig) { c.TimeLimit = d }
}

func WithNodeLimit(n int) SolveOption {
	return func(c *SolveConfig) { c.NodeLimit = n }
}

func WithIterationLimit(n int) SolveOption {
	return func(c *SolveConfig) { c.IterationLimit = n }
}

// WithThreads sets the number of branch-and-bound workers. Results with
// more than one worker may differ in which of several optimal solutions is
// reported.
func WithThreads(n int) SolveOption {
	return func(c *SolveConfig) { c.Threads = n }
}

func WithTolerance(eps float64) SolveOption {
	return func(c *SolveConfig) { c.Tolerance = eps }
}

func WithIntegralityTolerance(eps float64) SolveOption {
	return func(c *SolveConfig) { c.IntegralityTolerance = eps }
}

func WithMIPGap(gap float64) SolveOption {
	return func(c *SolveConfig) { c.MIPGap = gap }
}

func WithBranching(b Branching) SolveOption {
	return func(c *SolveConfig) { c.Branching = b }
}

func WithPoolSize(n int) SolveOption {
	return func(c *SolveConfig) { c.PoolSize = n }
}

func (c SolveConfig) simplex() simplex.Config {
	return simplex.Config{
		Tolerance:            c.Tolerance,
		FeasibilityTolerance: c.FeasibilityTolerance,
		IterationLimit:       c.IterationLimit,
	}
}

func (c SolveConfig) bnb(logger Logger) bnb.Config {
	return bnb.Config{
		Simplex:              c.simplex(),
		Tolerance:            c.Tolerance,
		IntegralityTolerance: c.IntegralityTolerance,
		MIPGap:               c.MIPGap,
		NodeLimit:            c.NodeLimit,
		Threads:              c.Threads,
		Branching:            bnb.Branching(c.Branching),
		Logger:               logger,
	}
}
