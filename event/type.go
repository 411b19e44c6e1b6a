package event

import "fmt"

/* Type is the closed set of domain event categories the pipeline understands.
 * Sources map their own payload vocabulary onto these via TypeMappings.
 */
type Type int

const (
	EmailDelivered Type = iota + 1
	EmailOpened
	EmailClicked
	EmailBounced
	EmailDropped
	EmailSpamReport
	PaymentSucceeded
	PaymentFailed
	PaymentRefunded
	FormSubmitted
	Engagement
)

// Category groups event types for validation and triage rules
type Category int

const (
	CategoryEmail Category = iota + 1
	CategoryPayment
	CategoryEngagement
)

// String returns the string representation of the event type
func (t Type) String() string {
	switch t {
	case EmailDelivered:
		return "email.delivered"
	case EmailOpened:
		return "email.opened"
	case EmailClicked:
		return "email.clicked"
	case EmailBounced:
		return "email.bounced"
	case EmailDropped:
		return "email.dropped"
	case EmailSpamReport:
		return "email.spam_report"
	case PaymentSucceeded:
		return "payment.succeeded"
	case PaymentFailed:
		return "payment.failed"
	case PaymentRefunded:
		return "payment.refunded"
	case FormSubmitted:
		return "form.submitted"
	case Engagement:
		return "engagement"
	default:
		return "unknown"
	}
}

// NewType creates a Type from a string, zero if unrecognized
func NewType(s string) Type {
	switch s {
	case "email.delivered":
		return EmailDelivered
	case "email.opened":
		return EmailOpened
	case "email.clicked":
		return EmailClicked
	case "email.bounced":
		return EmailBounced
	case "email.dropped":
		return EmailDropped
	case "email.spam_report":
		return EmailSpamReport
	case "payment.succeeded":
		return PaymentSucceeded
	case "payment.failed":
		return PaymentFailed
	case "payment.refunded":
		return PaymentRefunded
	case "form.submitted":
		return FormSubmitted
	case "engagement":
		return Engagement
	default:
		return 0
	}
}

// Validate checks if the event type is valid
func (t Type) Validate() error {
	if t < EmailDelivered || t > Engagement {
		return fmt.Errorf("invalid event type: %d", t)
	}
	return nil
}

// Category returns the validation category for the event type
func (t Type) Category() Category {
	switch t {
	case EmailDelivered, EmailOpened, EmailClicked, EmailBounced, EmailDropped, EmailSpamReport:
		return CategoryEmail
	case PaymentSucceeded, PaymentFailed, PaymentRefunded:
		return CategoryPayment
	default:
		return CategoryEngagement
	}
}

// IsUserAction reports whether the type represents a direct user action
func (t Type) IsUserAction() bool {
	switch t {
	case EmailOpened, EmailClicked, FormSubmitted, Engagement:
		return true
	default:
		return false
	}
}
