package dto

import "github.com/google/uuid"

type EmailPayload struct {
	ClaimID         uuid.UUID      `json:"claimId" validate:"required"`
	EmailType       string         `json:"emailType" validate:"required"`
	Personalisation map[string]any `json:"emailPersonalisation"`
}

type LetterPayload struct {
	ClaimID         uuid.UUID      `json:"claimId" validate:"required"`
	LetterType      string         `json:"letterType" validate:"required"`
	Personalisation map[string]any `json:"letterPersonalisation"`
}
