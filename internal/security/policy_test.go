package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/config"
)

func TestPasswordPolicy(t *testing.T) {
	policy, err := NewPasswordPolicy(config.PasswordPolicyConfig{
		MinLength:      8,
		MaxLength:      16,
		Pattern:        `^[\x21-\x7E]+$`,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		Message:        "too weak",
	})
	require.NoError(t, err)
	assert.Equal(t, "too weak", policy.Message())

	tests := []struct {
		password string
		want     bool
	}{
		{"Str0ng#Pass", true},
		{"Sh0rt#", false},
		{"Waytoolong#Passw0rd", false},
		{"nouppercase#1", false},
		{"NOLOWERCASE#1", false},
		{"NoDigits#Here", false},
		{"NoSpecial1Here", false},
		{"Has Space#1A", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.password))
		})
	}
}

func TestPasswordPolicyRejectsBadPattern(t *testing.T) {
	_, err := NewPasswordPolicy(config.PasswordPolicyConfig{MinLength: 8, MaxLength: 64, Pattern: `(?=.*\d)`})
	assert.Error(t, err)
}
