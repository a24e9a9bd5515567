package handler

import (
	"strings"

	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/email"
)

const maxMetadataEntries = 16

type CreateSessionRequest struct {
	Email    string            `json:"email"`
	Callback string            `json:"callback,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r *CreateSessionRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Callback = strings.TrimSpace(r.Callback)
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validateMetadata(r.Metadata)
}

type StartAttemptRequest struct {
	Email    string            `json:"email"`
	Flow     string            `json:"flow,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r *StartAttemptRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Flow != "" && models.ParseFlow(r.Flow) != models.Flow(strings.TrimSpace(strings.ToLower(r.Flow))) {
		return dErrors.New(dErrors.CodeValidation, "flow must be captcha or long_form")
	}
	return validateMetadata(r.Metadata)
}

type SubmitRequest struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

func (r *SubmitRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.Email == "" || r.SessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "email and session_id are required")
	}
	return nil
}

func validateEmail(s string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !email.Valid(s) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return nil
}

func validateMetadata(m map[string]string) error {
	if len(m) > maxMetadataEntries {
		return dErrors.New(dErrors.CodeValidation, "too many metadata entries")
	}
	return nil
}
