package notify

import (
	"context"
	"fmt"
)

// OtpSMSTemplate is agreed with the SMS gateway for billing and DLT
// compliance. Do not edit the wording.
const OtpSMSTemplate = "%s is your OTP to reset your HCADMIN password. It is valid for %d minutes. Do not share it with anyone. -HCADMN"

const OtpEmailSubject = "Password reset code"

const otpEmailTemplate = `<p>Hello %s,</p>
<p>Your one-time password to reset your account password is <strong>%s</strong>.</p>
<p>It is valid for %d minutes. If you did not request a reset, you can ignore this email.</p>`

type SMSSender interface {
	SendSMS(ctx context.Context, contact string, message string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, address string, subject string, htmlBody string) error
}

func OtpSMS(code string, expiryMinutes int) string {
	return fmt.Sprintf(OtpSMSTemplate, code, expiryMinutes)
}

func OtpEmail(username string, code string, expiryMinutes int) string {
	return fmt.Sprintf(otpEmailTemplate, username, code, expiryMinutes)
}
