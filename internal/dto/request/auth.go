package request

type FinalizeRequest struct {
	Code        string  `json:"code" validate:"required,uuid"`
	PhoneNumber string  `json:"phone_number" validate:"required,e164,startswith=+"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
}

type PhoneOTPInitiateRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164,startswith=+"`
}

type PhoneOTPVerifyRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164,startswith=+"`
	OTPCode     string `json:"otp_code" validate:"required,numeric,min=4,max=10"`
}

// InboundMessage is the transport-neutral form of a chat message.
type InboundMessage struct {
	ChatID    string
	Text      string
	Username  *string
	FirstName *string
	LastName  *string
}

// SessionMeta is recorded on the session row.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}
