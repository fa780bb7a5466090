package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// DiagnosticText replaces a session's context after a failed attempt.
const DiagnosticText = "The previous output was greater than the token limit or errored and as a result the request failed. The context has been removed."

// Attempt is one supervised reasoning call.
type Attempt func(ctx context.Context) (Outcome, error)

// Supervisor retries reasoning attempts under a per-attempt timeout. Every
// failed attempt clears the session and leaves a diagnostic behind.
type Supervisor struct {
	store      ConversationStore
	maxRetries int
	timeout    time.Duration
	log        *logging.Logger
}

// NewSupervisor creates a Supervisor. maxRetries counts retries after the
// first attempt.
func NewSupervisor(store ConversationStore, maxRetries int, timeout time.Duration, log *logging.Logger) *Supervisor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Supervisor{
		store:      store,
		maxRetries: maxRetries,
		timeout:    timeout,
		log:        log.Sub("supervisor"),
	}
}

// Run executes attempt until it succeeds, reports a malformed tool call, or
// runs out of retries. A malformed outcome resets the session and returns
// without retrying.
func (s *Supervisor) Run(ctx context.Context, key string, attempt Attempt) (Outcome, error) {
	var lastErr error
	for n := 0; n <= s.maxRetries; n++ {
		out, err := s.attempt(ctx, attempt)
		if err == nil {
			if out.Kind == OutcomeMalformed {
				s.reset(key, n, ErrMalformedToolCall)
			}
			return out, nil
		}

		lastErr = err
		s.reset(key, n, err)
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("run canceled: %w", ctx.Err())
		}
	}
	return Outcome{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, s.maxRetries+1, lastErr)
}

// attempt runs one call and stops waiting for it once the timeout fires.
// The call itself may keep running until it observes cancellation.
func (s *Supervisor) attempt(ctx context.Context, attempt Attempt) (Outcome, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := attempt(actx)
		done <- result{out, err}
	}()

	var timer <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case r := <-done:
		return r.out, r.err
	case <-timer:
		return Outcome{}, &TimeoutError{After: s.timeout}
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Supervisor) reset(key string, n int, cause error) {
	var timeout *TimeoutError
	s.log.Warn().
		Err(cause).
		Str("session", key).
		Int("attempt", n+1).
		Bool("timeout", errors.As(cause, &timeout)).
		Msg("attempt failed, clearing context")
	s.store.Clear(key)
	s.store.Append(key, domain.NewAssistantText(DiagnosticText))
}
