package dto

import "github.com/google/uuid"

// MakePaymentPayload funds a card for one payment cycle. It is also used
// for additional pregnancy payments.
type MakePaymentPayload struct {
	ClaimID        uuid.UUID `json:"claimId" validate:"required"`
	PaymentCycleID uuid.UUID `json:"paymentCycleId" validate:"required"`
	CardAccountID  string    `json:"cardAccountId" validate:"required"`
}

type DetermineEntitlementPayload struct {
	ClaimID                uuid.UUID `json:"claimId" validate:"required"`
	PreviousPaymentCycleID uuid.UUID `json:"previousPaymentCycleId"`
	CurrentPaymentCycleID  uuid.UUID `json:"currentPaymentCycleId" validate:"required"`
}
