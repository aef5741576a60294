package postAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/postAuth/internal/rate"
	"go.uber.org/zap"
)

const (
	throttleScopeLogin  = "login"
	throttleScopeVerify = "verify"
)

// checkThrottle rejects a caller whose IP has used its failure budget for
// scope. Requests without a client IP and Redis failures pass through; the
// per-account lockout still applies.
func (e *Engine) checkThrottle(ctx context.Context, scope, username string) error {
	ip := clientIPFromContext(ctx)
	if e.throttle == nil || ip == "" {
		return nil
	}
	err := e.throttle.Check(ctx, scope, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitAudit(ctx, auditEventRateLimited, false, username, ErrRateLimited, func() map[string]string {
			return map[string]string{"scope": scope}
		})
		return ErrRateLimited
	default:
		e.logger.Warn("throttle check failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}
}

// hitThrottle counts one failed attempt from the caller's IP.
func (e *Engine) hitThrottle(ctx context.Context, scope string) {
	ip := clientIPFromContext(ctx)
	if e.throttle == nil || ip == "" {
		return
	}
	if _, err := e.throttle.Hit(ctx, scope, ip); err != nil {
		e.logger.Warn("throttle update failed", zap.String("scope", scope), zap.Error(err))
	}
}
