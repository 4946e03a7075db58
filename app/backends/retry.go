package backends

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const DefaultRetryBase = 500 * time.Millisecond

type retrying struct {
	backend  Backend
	attempts int
	base     time.Duration
	log      *log.Logger
}

// WithRetry retries transport failures with exponential backoff. Response
// errors are returned at once. A nil logger logs to the standard logger.
func WithRetry(b Backend, attempts int, base time.Duration, logger *log.Logger) Backend {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = DefaultRetryBase
	}
	if logger == nil {
		logger = log.Default()
	}
	return &retrying{backend: b, attempts: attempts, base: base, log: logger}
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var err error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.base * time.Duration(1<<uint(i-1))):
			}
		}

		var text string
		if text, err = r.backend.Generate(ctx, prompt); err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrBackendTransport) {
			return "", err
		}
		r.log.Printf("⚠️ Attempt %d failed: %v", i+1, err)
	}
	return "", fmt.Errorf("request failed after %d attempts: %w", r.attempts, err)
}
