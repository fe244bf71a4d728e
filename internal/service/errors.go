package service

import (
	"errors"
	"fmt"
)

// Failure classes. Concrete errors wrap exactly one class so callers can
// branch with errors.Is on either level.
var (
	ErrNotFound        = errors.New("not found")
	ErrMismatch        = errors.New("mismatch")
	ErrExpired         = errors.New("expired")
	ErrAlreadyConsumed = errors.New("already consumed")
	ErrRevoked         = errors.New("revoked")
	ErrSessionInactive = errors.New("session inactive")
	ErrDeliveryFailed  = errors.New("delivery failed")
	ErrPolicyViolation = errors.New("policy violation")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrOtpNotFound          = fmt.Errorf("otp %w", ErrNotFound)
	ErrRefreshTokenNotFound = fmt.Errorf("refresh token %w", ErrNotFound)
	ErrResetGrantNotFound   = fmt.Errorf("reset grant %w", ErrNotFound)
	ErrSessionNotFound      = fmt.Errorf("session %w", ErrNotFound)
	ErrAttachmentNotFound   = fmt.Errorf("attachment %w", ErrNotFound)

	ErrContactMismatch         = fmt.Errorf("contact number %w", ErrMismatch)
	ErrEmailMismatch           = fmt.Errorf("email %w", ErrMismatch)
	ErrCodeMismatch            = fmt.Errorf("otp code %w", ErrMismatch)
	ErrPasswordConfirmMismatch = fmt.Errorf("password confirmation %w", ErrMismatch)

	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)
	ErrUserInactive       = fmt.Errorf("user inactive: %w", ErrForbidden)
	ErrUsernameTaken      = fmt.Errorf("username taken: %w", ErrConflict)

	ErrFileTooLarge     = fmt.Errorf("file too large: %w", ErrInvalidInput)
	ErrUnsupportedMedia = fmt.Errorf("unsupported media type: %w", ErrInvalidInput)
)

// PolicyError carries the configured policy text back to the caller.
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string {
	return "password policy: " + e.Message
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyViolation
}

// Reason codes double as response message catalog keys.
const (
	ReasonOK                = "ok"
	ReasonUserNotFound      = "user_not_found"
	ReasonOtpNotFound       = "otp_not_found"
	ReasonTokenNotFound     = "token_not_found"
	ReasonGrantNotFound     = "reset_grant_not_found"
	ReasonNotFound          = "not_found"
	ReasonContactMismatch   = "contact_mismatch"
	ReasonEmailMismatch     = "email_mismatch"
	ReasonCodeMismatch      = "otp_mismatch"
	ReasonConfirmMismatch   = "password_confirm_mismatch"
	ReasonMismatch          = "mismatch"
	ReasonExpired           = "expired"
	ReasonAlreadyConsumed   = "already_consumed"
	ReasonRevoked           = "revoked"
	ReasonSessionInactive   = "session_inactive"
	ReasonDeliveryFailed    = "delivery_failed"
	ReasonPolicyViolation   = "policy_violation"
	ReasonTooManyRequests   = "too_many_requests"
	ReasonInvalidInput      = "invalid_input"
	ReasonFileTooLarge      = "file_too_large"
	ReasonUnsupportedMedia  = "unsupported_media"
	ReasonInvalidCredential = "invalid_credentials"
	ReasonUserInactive      = "user_inactive"
	ReasonUnauthenticated   = "unauthenticated"
	ReasonForbidden         = "forbidden"
	ReasonConflict          = "conflict"
	ReasonInternal          = "internal_error"
)

var classified = []struct {
	err    error
	reason string
}{
	{ErrUserNotFound, ReasonUserNotFound},
	{ErrOtpNotFound, ReasonOtpNotFound},
	{ErrRefreshTokenNotFound, ReasonTokenNotFound},
	{ErrResetGrantNotFound, ReasonGrantNotFound},
	{ErrNotFound, ReasonNotFound},
	{ErrContactMismatch, ReasonContactMismatch},
	{ErrEmailMismatch, ReasonEmailMismatch},
	{ErrCodeMismatch, ReasonCodeMismatch},
	{ErrPasswordConfirmMismatch, ReasonConfirmMismatch},
	{ErrMismatch, ReasonMismatch},
	{ErrExpired, ReasonExpired},
	{ErrAlreadyConsumed, ReasonAlreadyConsumed},
	{ErrRevoked, ReasonRevoked},
	{ErrSessionInactive, ReasonSessionInactive},
	{ErrDeliveryFailed, ReasonDeliveryFailed},
	{ErrPolicyViolation, ReasonPolicyViolation},
	{ErrTooManyRequests, ReasonTooManyRequests},
	{ErrFileTooLarge, ReasonFileTooLarge},
	{ErrUnsupportedMedia, ReasonUnsupportedMedia},
	{ErrInvalidInput, ReasonInvalidInput},
	{ErrInvalidCredentials, ReasonInvalidCredential},
	{ErrUserInactive, ReasonUserInactive},
	{ErrUnauthenticated, ReasonUnauthenticated},
	{ErrForbidden, ReasonForbidden},
	{ErrConflict, ReasonConflict},
}

// Classify maps an error to a stable reason code. Anything it does not
// recognise is an infrastructure failure and reports ReasonInternal.
func Classify(err error) string {
	if err == nil {
		return ReasonOK
	}
	for _, c := range classified {
		if errors.Is(err, c.err) {
			return c.reason
		}
	}
	return ReasonInternal
}
