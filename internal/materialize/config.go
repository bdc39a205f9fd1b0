package materialize

import "time"

// Config bounds the work one scheduler run may do. It can be swapped at
// runtime with Scheduler.Apply.
type Config struct {
	// LookaheadDays is how far past today occurrences are materialized.
	LookaheadDays int
	LeaseTTL      time.Duration
	// MaxOccurrencesPerRun caps the tasks one rule may produce per run; the
	// rest follow on the next run.
	MaxOccurrencesPerRun int
	// MaxConsecutiveFailures flags a rule for manual review once reached.
	MaxConsecutiveFailures int
	BackoffInitial         time.Duration
	BackoffMax             time.Duration
	// Workers bounds how many rules are processed in parallel.
	Workers int
	// CreateRatePerSec throttles task creation across all rules. Zero means
	// unlimited.
	CreateRatePerSec float64
	WorkerID         string
}

func DefaultConfig() Config {
	return Config{
		LookaheadDays:          30,
		LeaseTTL:               2 * time.Minute,
		MaxOccurrencesPerRun:   500,
		MaxConsecutiveFailures: 5,
		BackoffInitial:         time.Minute,
		BackoffMax:             time.Hour,
		Workers:                4,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LookaheadDays < 0 {
		c.LookaheadDays = 0
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = def.LeaseTTL
	}
	if c.MaxOccurrencesPerRun <= 0 {
		c.MaxOccurrencesPerRun = def.MaxOccurrencesPerRun
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = def.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.CreateRatePerSec < 0 {
		c.CreateRatePerSec = 0
	}
	if c.WorkerID == "" {
		c.WorkerID = "recur"
	}
	return c
}
