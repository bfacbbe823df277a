package mailer

import "fmt"

// OTPSubject returns the subject line for a one-time code email.
func OTPSubject(purpose string) string {
	switch purpose {
	case "password_reset":
		return "Your password reset code"
	case "registration", "email_verification":
		return "Verify your email address"
	default:
		return "Your login verification code"
	}
}

// OTPBody renders the body for a one-time code email.
func OTPBody(purpose, code string, ttlMinutes int) string {
	switch purpose {
	case "password_reset":
		return fmt.Sprintf(
			"We received a request to reset your password.\r\n\r\n"+
				"Your verification code is: %s\r\n\r\n"+
				"The code expires in %d minutes. If you did not request a reset, ignore this message.",
			code, ttlMinutes)
	default:
		return fmt.Sprintf(
			"Your verification code is: %s\r\n\r\n"+
				"The code expires in %d minutes. Do not share it with anyone.",
			code, ttlMinutes)
	}
}
