package models

// HelpRequest is the need-help form.
type HelpRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Message string `json:"message" validate:"required,max=2000"`
}

// HelpConfirmation is shown once a request is accepted.
const HelpConfirmation = "Your request has been submitted! We'll get back to you soon."

// Help request document fields.
const (
	FieldHelpEmail       = "email"
	FieldHelpPhone       = "phone"
	FieldHelpMessage     = "message"
	FieldHelpSubmittedAt = "submitted_at"
)

// HelpForm is the help screen view model.
type HelpForm struct {
	Submitted    bool   `json:"submitted"`
	RequestID    string `json:"requestId,omitempty"`
	Confirmation string `json:"confirmation,omitempty"`
}
