package email

import (
	"concord-backend/internal/config"
	"fmt"
	"net/smtp"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var server string
var address string
var username string
var password string
var fullServerAddress string
var useSmtp bool
var pageAddress string

// Setup sends mails through the configured SMTP server. Without one the
// confirmation links are listed on a page only reachable from this machine.
func Setup(cfg *config.Config, _sugar *zap.SugaredLogger) {
	sugar = _sugar
	server = cfg.SmtpServer
	address = fmt.Sprintf("%s:%s", cfg.SmtpServer, strconv.Itoa(cfg.SmtpPort))
	username = cfg.SmtpUsername
	password = cfg.SmtpPassword
	fullServerAddress = cfg.FullAddress()
	useSmtp = cfg.SmtpServer != ""
	pageAddress = cfg.EmailPageAddress

	if !useSmtp && pageAddress != "" {
		go localhostListener(pageAddress)
	}
}

func sendEmail(email []string, subject string, message string) error {
	auth := smtp.PlainAuth("", username, password, server)

	msg := fmt.Appendf(nil, "To: %s\r\n", email[0])
	msg = fmt.Append(msg, "MIME-version: 1.0;\r\n")
	msg = fmt.Append(msg, "Content-Type: text/html; charset=\"UTF-8\";\r\n")
	msg = fmt.Appendf(msg, "Subject: %s\r\n", subject)
	msg = fmt.Append(msg, "\r\n")
	msg = fmt.Appendf(msg, "%s\r\n", message)

	return smtp.SendMail(address, auth, username, email, msg)
}

func ConfirmationLink(token string) string {
	return fmt.Sprintf("%s/api/email/confirm?token=%s", fullServerAddress, url.QueryEscape(token))
}

func SendEmailConfirmation(email string, username string, token string) error {
	link := ConfirmationLink(token)

	if !useSmtp {
		if pageAddress != "" {
			sugar.Infof("No SMTP server configured, confirmation link for %s is listed on http://%s/emails_to_confirm", email, pageAddress)
		}
		return storeManual(email, link)
	}

	subject := "Email confirmation"
	message := fmt.Sprintf(`
	<html>
		<body>
			<h2>Hello %s!</h2>
			<a href="%s">Confirm your email by clicking here</a>
		</body>
	</html>`,
		username, link)

	return sendEmail([]string{email}, subject, message)
}
