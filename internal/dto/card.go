package dto

import "github.com/google/uuid"

type VoucherEntitlement struct {
	VouchersForChildrenUnderOne  int `json:"vouchersForChildrenUnderOne" validate:"gte=0"`
	VouchersForChildrenUnderFour int `json:"vouchersForChildrenUnderFour" validate:"gte=0"`
	VouchersForPregnancy         int `json:"vouchersForPregnancy" validate:"gte=0"`
	SingleVoucherValueInPence    int `json:"singleVoucherValueInPence" validate:"gt=0"`
	TotalVoucherValueInPence     int `json:"totalVoucherValueInPence" validate:"gte=0"`
}

// NewCardRequestPayload asks the card service to issue a card for a claim.
type NewCardRequestPayload struct {
	ClaimID                uuid.UUID          `json:"claimId" validate:"required"`
	VoucherEntitlement     VoucherEntitlement `json:"voucherEntitlement"`
	DatesOfBirthOfChildren []string           `json:"datesOfBirthOfChildren" validate:"dive,datetime=2006-01-02"`
}

// CompleteNewCardPayload records the issued card against the claim and
// triggers the first payment.
type CompleteNewCardPayload struct {
	ClaimID            uuid.UUID          `json:"claimId" validate:"required"`
	CardAccountID      string             `json:"cardAccountId" validate:"required,printascii,excludesall=/?#%"`
	VoucherEntitlement VoucherEntitlement `json:"voucherEntitlement"`
}
