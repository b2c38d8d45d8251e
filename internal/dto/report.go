package dto

import (
	"time"

	"github.com/google/uuid"
)

type ReportClaimPayload struct {
	ClaimID     uuid.UUID `json:"claimId" validate:"required"`
	ClaimAction string    `json:"claimAction" validate:"required,oneof=NEW UPDATED_FROM_NEW UPDATED_FROM_ACTIVE REJECTED EXPIRED"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
}

type ReportPaymentPayload struct {
	ClaimID              uuid.UUID `json:"claimId" validate:"required"`
	PaymentCycleID       uuid.UUID `json:"paymentCycleId" validate:"required"`
	PaymentAction        string    `json:"paymentAction" validate:"required,oneof=INITIAL_PAYMENT SCHEDULED_PAYMENT TOP_UP_PAYMENT"`
	PaymentAmountInPence int       `json:"paymentAmountInPence" validate:"gte=0"`
	Timestamp            time.Time `json:"timestamp" validate:"required"`
}
