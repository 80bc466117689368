package backend

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/clipflow/pkg/metrics"
	"github.com/your-org/clipflow/pkg/tracing"
)

// Authenticator obtains a fresh bearer token.
type Authenticator interface {
	Login(ctx context.Context) (string, error)
}

// Token is one bearer token and when it was obtained.
type Token struct {
	Value      string
	AcquiredAt time.Time
}

// Session owns the current backend token. Readers take a snapshot with
// Token; only Refresh replaces it.
type Session struct {
	auth    Authenticator
	logger  *zap.Logger
	metrics *metrics.Metrics
	period  time.Duration
	tick    time.Duration
	timeout time.Duration
	now     func() time.Time

	current atomic.Pointer[Token]
}

type SessionParams struct {
	Auth          Authenticator
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	RefreshPeriod time.Duration
	RefreshTick   time.Duration
	LoginTimeout  time.Duration
}

// NewSession constructs a Session with no token. Call Refresh before
// handing it to anything that uploads.
func NewSession(p SessionParams) *Session {
	s := &Session{
		auth:    p.Auth,
		logger:  p.Logger,
		metrics: p.Metrics,
		period:  p.RefreshPeriod,
		tick:    p.RefreshTick,
		timeout: p.LoginTimeout,
		now:     time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.period <= 0 {
		s.period = 170 * time.Minute
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	return s
}

// Token returns the current token, if one has been obtained.
func (s *Session) Token() (Token, bool) {
	t := s.current.Load()
	if t == nil {
		return Token{}, false
	}
	return *t, true
}

// Refresh logs in and swaps in the new token. On failure the previous
// token stays current.
func (s *Session) Refresh(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "backend.login")
	defer func() { tracing.End(span, err) }()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	value, err := s.auth.Login(ctx)
	s.metrics.Refresh(err == nil)
	if err != nil {
		return err
	}

	s.current.Store(&Token{Value: value, AcquiredAt: s.now()})
	return nil
}

// Run refreshes the token once per period until ctx is done. The schedule is
// checked every tick so the loop reacts to cancellation promptly. Failures
// are logged and the previous token keeps being used.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	last := s.now()
	if t, ok := s.Token(); ok {
		last = t.AcquiredAt
	}

	s.logger.Info("credential refresh loop started", zap.Duration("period", s.period))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("credential refresh loop stopped")
			return
		case <-ticker.C:
		}

		if t, ok := s.Token(); ok && t.AcquiredAt.After(last) {
			last = t.AcquiredAt
		}
		if s.now().Sub(last) < s.period {
			continue
		}
		last = s.now()

		if err := s.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("credential refresh failed; keeping previous token", zap.Error(err))
			continue
		}
		s.logger.Info("credential refreshed")
	}
}
