package security

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"hcadmin/internal/config"
)

// PasswordPolicy is built once at startup and read-only afterwards.
type PasswordPolicy struct {
	minLength      int
	maxLength      int
	pattern        *regexp.Regexp
	requireUpper   bool
	requireLower   bool
	requireDigit   bool
	requireSpecial bool
	message        string
}

func NewPasswordPolicy(cfg config.PasswordPolicyConfig) (*PasswordPolicy, error) {
	policy := &PasswordPolicy{
		minLength:      cfg.MinLength,
		maxLength:      cfg.MaxLength,
		requireUpper:   cfg.RequireUpper,
		requireLower:   cfg.RequireLower,
		requireDigit:   cfg.RequireDigit,
		requireSpecial: cfg.RequireSpecial,
		message:        cfg.Message,
	}
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile password pattern: %w", err)
		}
		policy.pattern = re
	}
	if policy.message == "" {
		policy.message = fmt.Sprintf("Password must be %d-%d characters.", cfg.MinLength, cfg.MaxLength)
	}
	return policy, nil
}

// Message is the configured text shown to users on rejection.
func (p *PasswordPolicy) Message() string {
	return p.message
}

func (p *PasswordPolicy) Allows(password string) bool {
	n := utf8.RuneCountInString(password)
	if n < p.minLength || (p.maxLength > 0 && n > p.maxLength) {
		return false
	}
	if p.pattern != nil && !p.pattern.MatchString(password) {
		return false
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	return (!p.requireUpper || upper) &&
		(!p.requireLower || lower) &&
		(!p.requireDigit || digit) &&
		(!p.requireSpecial || special)
}
