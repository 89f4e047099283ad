package http

import "regexp"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() []FieldError {
	var errs []FieldError
	if !emailPattern.MatchString(r.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "invalid email format"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if !emailPattern.MatchString(r.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "invalid email format"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r *VerifyEmailRequest) Validate() []FieldError {
	if r.Token == "" {
		return []FieldError{{Field: "token", Message: "token is required"}}
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *ForgotPasswordRequest) Validate() []FieldError {
	if !emailPattern.MatchString(r.Email) {
		return []FieldError{{Field: "email", Message: "invalid email format"}}
	}
	return nil
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (r *ResetPasswordRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if r.Token == "" {
		errs = append(errs, FieldError{Field: "token", Message: "token is required"})
	}
	return errs
}

type DeleteAccountRequest struct {
	Password        string `json:"password"`
	ConfirmDeletion bool   `json:"confirmDeletion"`
}

func (r *DeleteAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if !r.ConfirmDeletion {
		errs = append(errs, FieldError{Field: "confirmDeletion", Message: "you must confirm account deletion"})
	}
	return errs
}
