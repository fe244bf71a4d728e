// Package messages resolves result codes to the text shown to clients.
// Lookups go Redis, then the response_messages table, then the built-in
// defaults below.
package messages

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hcadmin/internal/models"
	"hcadmin/internal/repository"
	"hcadmin/internal/service"
)

const (
	cachePrefix = "msg:"
	cacheTTL    = time.Hour
)

// CodeResetIdentity answers every failed identify step of the public reset
// flow, so callers cannot tell unknown users from wrong contact details.
const CodeResetIdentity = "reset_identity_mismatch"

var defaults = map[string]string{
	service.ReasonOK:                "Success.",
	service.ReasonUserNotFound:      "User not found.",
	service.ReasonOtpNotFound:       "No OTP has been requested. Please request a new OTP.",
	service.ReasonTokenNotFound:     "Your session is no longer valid. Please sign in again.",
	service.ReasonGrantNotFound:     "Your reset request is invalid. Please start again.",
	service.ReasonNotFound:          "The requested record was not found.",
	service.ReasonContactMismatch:   "Contact number does not match our records.",
	service.ReasonEmailMismatch:     "Email does not match our records.",
	service.ReasonCodeMismatch:      "Invalid OTP.",
	service.ReasonConfirmMismatch:   "New password and confirm password do not match.",
	service.ReasonMismatch:          "The details provided do not match.",
	service.ReasonExpired:           "OTP has expired. Please request a new OTP.",
	service.ReasonAlreadyConsumed:   "This OTP has already been used.",
	service.ReasonRevoked:           "Your session is no longer valid. Please sign in again.",
	service.ReasonSessionInactive:   "Your session has ended. Please sign in again.",
	service.ReasonDeliveryFailed:    "We could not send the OTP. Please try again.",
	service.ReasonPolicyViolation:   "Password does not meet the password policy.",
	service.ReasonTooManyRequests:   "Too many requests. Please wait and try again.",
	service.ReasonInvalidInput:      "Invalid request.",
	service.ReasonFileTooLarge:      "The file is too large.",
	service.ReasonUnsupportedMedia:  "The file type is not supported.",
	service.ReasonInvalidCredential: "Invalid username or password.",
	service.ReasonUserInactive:      "Your account is inactive. Please contact the administrator.",
	service.ReasonUnauthenticated:   "Authentication required.",
	service.ReasonForbidden:         "You are not allowed to perform this action.",
	service.ReasonConflict:          "The record already exists.",
	service.ReasonInternal:          "Something went wrong. Please try again later.",
	CodeResetIdentity:               "The user name and contact details do not match our records.",
}

// Source is the persistent message table.
type Source interface {
	Get(ctx context.Context, code string) (models.ResponseMessage, error)
	Upsert(ctx context.Context, code, text string) error
}

type Catalog struct {
	cache  *redis.Client
	source Source
	log    zerolog.Logger
}

// NewCatalog accepts a nil cache or source; the missing tier is skipped.
func NewCatalog(cache *redis.Client, source Source, log zerolog.Logger) *Catalog {
	return &Catalog{cache: cache, source: source, log: log}
}

func (c *Catalog) Text(ctx context.Context, code string) string {
	if c.cache != nil {
		text, err := c.cache.Get(ctx, cachePrefix+code).Result()
		if err == nil {
			return text
		}
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("code", code).Msg("message cache read failed")
		}
	}

	if c.source != nil {
		msg, err := c.source.Get(ctx, code)
		switch {
		case err == nil:
			c.store(ctx, code, msg.Text)
			return msg.Text
		case !errors.Is(err, repository.ErrMessageNotFound):
			c.log.Warn().Err(err).Str("code", code).Msg("message lookup failed")
		}
	}

	if text, ok := defaults[code]; ok {
		return text
	}
	return defaults[service.ReasonInternal]
}

// Set overrides the text for code and drops the cached copy.
func (c *Catalog) Set(ctx context.Context, code, text string) error {
	if c.source == nil {
		return errors.New("message catalog has no source")
	}
	if err := c.source.Upsert(ctx, code, text); err != nil {
		return err
	}
	return c.Invalidate(ctx, code)
}

func (c *Catalog) Invalidate(ctx context.Context, code string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, cachePrefix+code).Err()
}

func (c *Catalog) store(ctx context.Context, code, text string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cachePrefix+code, text, cacheTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("code", code).Msg("message cache write failed")
	}
}
