package http

import "time"

// Envelope is the uniform response body. Errors always come back as
// {success:false, message, errors?}; simple successes reuse the same shape.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// UserPayload is the public projection of a user. Password hashes and raw
// tokens never appear in a response body.
type UserPayload struct {
	ID              uint64 `json:"id"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

type UserResponse struct {
	Success bool        `json:"success"`
	User    UserPayload `json:"user"`
}

type ExportedUser struct {
	ID              uint64    `json:"id"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ExportResponse struct {
	User           ExportedUser `json:"user"`
	ActiveSessions int64        `json:"activeSessions"`
	ExportDate     time.Time    `json:"exportDate"`
}
