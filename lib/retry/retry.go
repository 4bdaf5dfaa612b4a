package retry

import (
	"context"
	"time"
)

// Config bounds a retry loop. Backoff grows geometrically from
// InitialDelay by BackoffFactor up to MaxDelay; a factor of 0 is
// treated as constant delay.
type Config struct {
	Attempts      int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func Constant(attempts int, delay time.Duration) Config {
	return Config{
		Attempts:     attempts,
		InitialDelay: delay,
		MaxDelay:     delay,
	}
}

// Do runs action until it succeeds, the attempts run out or
// ctx is cancelled. The last error is returned on failure; ctx.Err()
// is returned when cancelled mid-wait.
func Do(ctx context.Context, cfg Config, action func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = action(ctx)
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if cfg.BackoffFactor > 0 {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return lastErr
}
