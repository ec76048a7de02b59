package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine. Events describe security-relevant
// transitions and never carry secret material.
const (
	auditEventEnrollmentStarted    = "twofactor.enrollment_started"
	auditEventEnrollmentCompleted  = "twofactor.enrollment_completed"
	auditEventEnrollmentFailed     = "twofactor.enrollment_failed"
	auditEventTOTPVerified         = "twofactor.totp_verified"
	auditEventTOTPRejected         = "twofactor.totp_rejected"
	auditEventAccountLocked        = "twofactor.account_locked"
	auditEventTwoFactorDisabled    = "twofactor.disabled"
	auditEventRecoveryCodeUsed     = "twofactor.recovery_code_used"
	auditEventRecoveryCodeRejected = "twofactor.recovery_code_rejected"
	auditEventRecoveryCodesReset   = "twofactor.recovery_codes_regenerated"
	auditEventPasskeyRegistered    = "webauthn.credential_registered"
	auditEventPasskeyRemoved       = "webauthn.credential_removed"
	auditEventPasskeyLogin         = "webauthn.login_succeeded"
	auditEventPasskeyRejected      = "webauthn.login_rejected"
	auditEventCounterMismatch      = "webauthn.counter_mismatch"
	auditEventChallengeReplay      = "webauthn.challenge_replayed"
	auditEventOAuthExchanged       = "oauth.code_exchanged"
	auditEventOAuthExchangeFailed  = "oauth.exchange_failed"
)

type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	Credential string            `json:"credential,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
