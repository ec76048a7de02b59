package internaldefs

import (
	authcore "github.com/credware/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the verification engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricEnrollmentStarted, Name: "authcore_enrollment_started_total", Help: "Started TOTP enrollment ceremonies."},
	{ID: authcore.MetricEnrollmentCompleted, Name: "authcore_enrollment_completed_total", Help: "Completed TOTP enrollments."},
	{ID: authcore.MetricEnrollmentFailed, Name: "authcore_enrollment_failed_total", Help: "Enrollment confirmations that failed verification."},
	{ID: authcore.MetricTOTPSuccess, Name: "authcore_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authcore.MetricTOTPFailure, Name: "authcore_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts locked by consecutive TOTP failures."},
	{ID: authcore.MetricLockedRejection, Name: "authcore_locked_rejection_total", Help: "Verification attempts rejected while locked."},
	{ID: authcore.MetricRecoveryCodeUsed, Name: "authcore_recovery_code_used_total", Help: "Successful recovery-code authentications."},
	{ID: authcore.MetricRecoveryCodeFailed, Name: "authcore_recovery_code_failed_total", Help: "Failed recovery-code authentications."},
	{ID: authcore.MetricRecoveryCodeRegenerated, Name: "authcore_recovery_code_regenerated_total", Help: "Recovery-code regeneration operations."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_twofactor_disabled_total", Help: "Two-factor disable operations."},
	{ID: authcore.MetricPasskeyRegistrationStarted, Name: "authcore_passkey_registration_started_total", Help: "Started passkey registration ceremonies."},
	{ID: authcore.MetricPasskeyRegistered, Name: "authcore_passkey_registered_total", Help: "Registered passkey credentials."},
	{ID: authcore.MetricPasskeyLoginStarted, Name: "authcore_passkey_login_started_total", Help: "Started passkey login ceremonies."},
	{ID: authcore.MetricPasskeyLoginSuccess, Name: "authcore_passkey_login_success_total", Help: "Successful passkey logins."},
	{ID: authcore.MetricPasskeyLoginFailure, Name: "authcore_passkey_login_failure_total", Help: "Failed passkey logins."},
	{ID: authcore.MetricCounterMismatch, Name: "authcore_counter_mismatch_total", Help: "Assertions rejected for a non-advancing signature counter."},
	{ID: authcore.MetricChallengeReplay, Name: "authcore_challenge_replay_total", Help: "Ceremony responses presented against a consumed or expired challenge."},
	{ID: authcore.MetricDeviceLimitHit, Name: "authcore_device_limit_hit_total", Help: "Registrations rejected by the per-user device cap."},
	{ID: authcore.MetricOAuthExchangeSuccess, Name: "authcore_oauth_exchange_success_total", Help: "Successful OAuth code exchanges."},
	{ID: authcore.MetricOAuthExchangeFailure, Name: "authcore_oauth_exchange_failure_total", Help: "Failed OAuth code exchanges."},
}

// HistogramDefs is an exported constant or variable used by the verification engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Verification latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the verification engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the verification engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
