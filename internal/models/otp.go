package models

import "time"

type OtpChannel string

const (
	OtpChannelSMS   OtpChannel = "sms"
	OtpChannelEmail OtpChannel = "email"
)

func (c OtpChannel) Valid() bool {
	return c == OtpChannelSMS || c == OtpChannelEmail
}

// OtpRecord stores a keyed hash of the code, never the code itself.
// A record is live while both ConsumedAt and SupersededAt are nil.
type OtpRecord struct {
	ID           string
	UserID       string
	Channel      OtpChannel
	CodeHash     []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	SupersededAt *time.Time
}

func (o OtpRecord) Consumed() bool {
	return o.ConsumedAt != nil
}

// ResetGrant is the one-shot permission to set a new password that a
// verified OTP yields.
type ResetGrant struct {
	UserID     string     `json:"userId"`
	Channel    OtpChannel `json:"channel"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
}
