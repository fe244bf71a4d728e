package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDecodeDefaults(t *testing.T) {
	cfg, err := decode(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Minute, cfg.Security.JWTAccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Security.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTP.OTPExpiry())
	assert.Equal(t, 6, cfg.OTP.Digits)
	assert.Equal(t, 10*time.Minute, cfg.OTP.ResetGraceWindow)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.True(t, cfg.PasswordPolicy.RequireSpecial)
}

func TestDecodeOverrides(t *testing.T) {
	cfg, err := decode(newViper(map[string]any{
		"otp.expiryminutes":     "3",
		"security.jwtaccessttl": "5m",
		"audit.brokers":         "kafka-1:9092,kafka-2:9092",
		"allowcorsorigins":      "https://admin.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, cfg.OTP.OTPExpiry())
	assert.Equal(t, 5*time.Minute, cfg.Security.JWTAccessTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.AllowCORSOrigins)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{"digits too small", map[string]any{"otp.digits": 3}},
		{"digits too large", map[string]any{"otp.digits": 8}},
		{"zero expiry", map[string]any{"otp.expiryminutes": 0}},
		{"inverted policy bounds", map[string]any{"passwordpolicy.minlength": 12, "passwordpolicy.maxlength": 8}},
		{"production without jwt secret", map[string]any{"environment": "production", "otp.secret": "s"}},
		{"production without otp secret", map[string]any{"environment": "production", "security.jwtaccesssecret": "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(newViper(tt.overrides))
			assert.Error(t, err)
		})
	}
}
