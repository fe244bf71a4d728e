package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// GenerateOtpCode returns a zero-padded numeric code of the given length.
func GenerateOtpCode(digits int) (string, error) {
	if digits < 4 || digits > 6 {
		return "", fmt.Errorf("otp digits must be 4-6, got %d", digits)
	}
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// HashOtp binds the code to its owner and channel so a stored hash is
// useless for any other (user, channel) pair.
func HashOtp(secret string, parts ...string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, ":")))
	return mac.Sum(nil)
}

func OtpHashEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
