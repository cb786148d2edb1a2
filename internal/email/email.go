// Package email delivers verification codes to account holders.
//
// Delivery is best-effort by design: sign-up reports whether the email went
// out but never fails because of it, and resend-code exists as the recovery
// path. The Sender interface keeps the rest of the app unaware of which
// transport (pooled SMTP, or just the log in dev mode) is behind it.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

// Sender delivers a verification code to one recipient.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, username, code string) error
}

const verificationSubject = "Whisper Net Verification Code"

// verificationHTML is the full body of the verification email. Inline styles
// only — email clients strip everything else.
var verificationHTML = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Verify Your Email</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Welcome to Whisper Net, {{.Username}}!</h2>
        <p>Thank you for signing up. To complete your registration, please use the verification code below:</p>
        <div style="background-color: #f4f4f4; padding: 12px; text-align: center; font-size: 24px; letter-spacing: 4px; margin: 20px 0;">
            <strong>{{.Code}}</strong>
        </div>
        <p>This code will expire in 1 hour.</p>
        <p>If you didn't request this verification, please ignore this email.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #666; font-size: 12px;">This is an automated message, please do not reply.</p>
    </div>
</body>
</html>
`))

func renderVerificationHTML(username, code string) ([]byte, error) {
	var buf bytes.Buffer
	err := verificationHTML.Execute(&buf, struct {
		Username string
		Code     string
	}{Username: username, Code: code})
	if err != nil {
		return nil, fmt.Errorf("email: rendering verification body: %w", err)
	}
	return buf.Bytes(), nil
}

// renderVerificationText is the plain-text alternative for clients that
// don't render HTML.
func renderVerificationText(username, code string) []byte {
	return []byte(fmt.Sprintf("Hi %s, your verification code is: %s", username, code))
}
