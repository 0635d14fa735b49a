package runloop

import "time"

// Config bounds a single ProcessMessage call's retry behavior (spec
// §4.7, §6 configuration table). Field names mirror the original devops
// agent's max_events_per_attempt / max_retries / max_consecutive_errors
// constants.
type Config struct {
	// MaxRetries is the number of retries allowed after the first
	// attempt fails with a retryable transport error (4 attempts total).
	MaxRetries int

	// MaxEventsPerAttempt caps the number of step events (LLM calls plus
	// individual tool executions) a single attempt may produce before it
	// is aborted as a circuit breaker.
	MaxEventsPerAttempt int

	// AttemptTimeout caps one attempt's wall-clock duration.
	AttemptTimeout time.Duration

	// MaxConsecutiveErrors aborts the whole call outright once reached,
	// even if the most recent error was individually retryable.
	MaxConsecutiveErrors int
}

// DefaultConfig matches the original devops agent's defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		MaxEventsPerAttempt:  50,
		AttemptTimeout:       300 * time.Second,
		MaxConsecutiveErrors: 5,
	}
}
