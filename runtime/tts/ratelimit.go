package tts

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited paces calls to a wrapped Service with a token bucket.
type RateLimited struct {
	inner   Service
	limiter *rate.Limiter
}

// NewRateLimited wraps svc so that at most rps requests per second (with the
// given burst) reach the provider. A non-positive rps returns svc unchanged.
func NewRateLimited(svc Service, rps float64, burst int) Service {
	if rps <= 0 {
		return svc
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: svc, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Name returns the wrapped provider's name.
func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// Synthesize waits for a token, then delegates. Blank text is rejected
// without consuming a token.
func (r *RateLimited) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Synthesize(ctx, req)
}
