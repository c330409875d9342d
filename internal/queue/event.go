// Package queue defines message payloads exchanged over the message broker.
package queue

// EmailQueueName is the durable queue carrying outbound email requests.
const EmailQueueName = "email.send"

// Email templates understood by the delivery worker. The worker owns
// subject lines and bodies; the core only names the template and
// supplies its variables.
const (
	TemplateVerificationCode = "verification_code"
	TemplateWelcome          = "welcome"
	TemplatePasswordReset    = "password_reset_code"
	TemplateLoginNotice      = "login_notice"
	TemplateAccountDeleted   = "account_deleted"
	TemplatePasswordChanged  = "password_changed"
)

// EmailRequestedEvent is published whenever the core wants an email
// sent. Dispatch is fire-and-forget: the publisher logs failures and
// the originating request never waits on delivery.
type EmailRequestedEvent struct {
	Template    string `json:"template"`
	To          string `json:"to"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	RequestedAt string `json:"requested_at"`
}
