package tools

import (
	"fmt"
	"log/slog"
)

// SendEmail simulates sending an email. The course modules never deliver
// real mail; the call logs the message and reports success.
func SendEmail(logger *slog.Logger, to, subject, body string) string {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("[SIMULATED] Sending email", "to", to, "subject", subject, "body", body)
	return fmt.Sprintf("Email sent to %s", to)
}
