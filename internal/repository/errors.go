package repository

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrOtpNotFound          = errors.New("otp not found")
	ErrOtpAlreadyConsumed   = errors.New("otp already consumed")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotActive     = errors.New("session not active")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrAttachmentNotFound   = errors.New("attachment not found")
	ErrMessageNotFound      = errors.New("response message not found")
	ErrGrantNotFound        = errors.New("reset grant not found")
	ErrGrantConsumed        = errors.New("reset grant already consumed")
	ErrGrantExpired         = errors.New("reset grant expired")
)
