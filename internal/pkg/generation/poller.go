package generation

import (
	"context"
	"time"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 90
)

// Poller waits for a queued fal.ai request to finish. It sleeps one
// Interval before every status check and gives up after MaxAttempts checks.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int

	// Sleep is replaced in tests. It must return ctx.Err() when ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a poller with the default interval and ceiling.
func NewPoller() *Poller {
	return &Poller{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultPollMaxAttempts,
		Sleep:       sleepContext,
	}
}

// Wait polls until the request completes and returns the raw result
// document together with the number of status checks made. Any transport
// or HTTP error ends the wait immediately.
func (p *Poller) Wait(ctx context.Context, provider QueueProvider, t Ticket) ([]byte, int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return nil, attempt - 1, err
		}

		st, err := provider.Status(ctx, t.StatusURL)
		if err != nil {
			return nil, attempt, err
		}

		switch st.Status {
		case QueueStatusCompleted:
			body, err := provider.Result(ctx, t.ResponseURL)
			return body, attempt, err
		case QueueStatusFailed:
			reason := st.Error
			if reason == "" {
				reason = "Generation failed"
			}
			return nil, attempt, &ProviderError{Message: reason}
		}
	}
	return nil, maxAttempts, ErrGenerationTimeout
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
