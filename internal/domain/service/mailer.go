package service

import "context"

// TemplateKind names an outbound mail template.
type TemplateKind string

const (
	// TemplateNewLocationAlert notifies the account owner of a first-time-location login.
	TemplateNewLocationAlert TemplateKind = "new_location_alert"
	// TemplateBurstFailureAlert notifies the account owner of a burst of failed logins.
	TemplateBurstFailureAlert TemplateKind = "burst_failure_alert"
	// TemplateVerifyEmail carries the email-verification link at registration.
	TemplateVerifyEmail TemplateKind = "verify_email"
)

// Mailer defines the interface for the outbound notification/email transport.
// Delivery is strictly advisory: callers log and discard errors, they never let
// a dispatch failure change an authentication outcome.
type Mailer interface {
	// Send dispatches one templated message to the recipient address.
	Send(ctx context.Context, recipient string, kind TemplateKind, data map[string]any) error
}
