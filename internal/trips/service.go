// Package trips implements the trip directory and the join-request lifecycle.
package trips

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/store"
	"github.com/yatri-app/backend/pkg/retry"
)

// DefaultOpTimeout bounds every store round trip made by one operation.
const DefaultOpTimeout = 15 * time.Second

// Service serves the directory and request workflows.
type Service struct {
	store   store.Store
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
	retry   retry.Policy
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now, which decides what "today" is for search.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimeout sets the per-operation store timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetryPolicy sets the policy used for idempotent reads.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// NewService creates a trips service.
func NewService(st store.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   st,
		logger:  logger,
		now:     time.Now,
		timeout: DefaultOpTimeout,
		retry:   retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// read runs an idempotent read under the timeout with retries.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return fn(ctx)
	})
}

// today is the current calendar date at UTC midnight.
func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
