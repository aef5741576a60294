package postAuth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/postAuth/internal/audit"
	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/internal/lockout"
	"github.com/MrEthical07/postAuth/internal/rate"
	"github.com/MrEthical07/postAuth/jwt"
	"github.com/MrEthical07/postAuth/password"
	"github.com/MrEthical07/postAuth/sms"
	"github.com/MrEthical07/postAuth/store"
	"github.com/MrEthical07/postAuth/totp"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Engine runs the two-phase login protocol and the operations around it.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// All methods are safe for concurrent use.
type Engine struct {
	config   Config
	store    store.Store
	hasher   *password.Argon2
	sessions *jwt.Manager
	totp     *totp.Adapter
	lockout  *lockout.Policy
	throttle *rate.Limiter
	codes    *codes.Generator
	sms      *sms.Dispatcher
	audit    *audit.Dispatcher
	metrics  *metrics
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// Close drains queued SMS messages and audit events.
//
// Close does not close the store; its owner does.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.sms.Close()
	e.audit.Close()
}

// AuditDropped reports audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// SMSDropped reports SMS messages discarded because the queue was full.
func (e *Engine) SMSDropped() uint64 {
	if e == nil || e.sms == nil {
		return 0
	}
	return e.sms.Dropped()
}

// MetricsHandler serves the engine's Prometheus registry. It responds 404
// when metrics are disabled.
func (e *Engine) MetricsHandler() http.Handler {
	return e.metrics.handler()
}

// SessionTTL is the lifetime of issued session tokens.
func (e *Engine) SessionTTL() time.Duration {
	return e.sessions.TTL()
}

// Ping checks that the credential store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// hasValidSession reports whether ctx carries a token that still validates.
func (e *Engine) hasValidSession(ctx context.Context) bool {
	token := sessionTokenFromContext(ctx)
	if token == "" {
		return false
	}
	_, err := e.sessions.Validate(token)
	return err == nil
}

func (e *Engine) internal(op string, err error, fields ...zap.Field) error {
	e.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %s", ErrInternal, op)
}

func (e *Engine) sendSMS(ctx context.Context, username, phoneNumber, code, purpose string) {
	ok := e.sms.Enqueue(sms.Message{
		PhoneNumber: phoneNumber,
		Body:        fmt.Sprintf(e.config.OTP.MessageTemplate, code),
		Purpose:     purpose,
	})
	if !ok {
		e.emitAudit(ctx, auditEventSMSDispatchRejected, false, username, nil, func() map[string]string {
			return map[string]string{"purpose": purpose}
		})
	}
}
