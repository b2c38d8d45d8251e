package job

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/middleware"
)

var validate = validator.New()

var payloadValidators = map[config.JobType]func(json.RawMessage) error{
	config.JobTypeRequestNewCard:             validatePayload[dto.NewCardRequestPayload],
	config.JobTypeCompleteNewCardProcess:     validatePayload[dto.CompleteNewCardPayload],
	config.JobTypeDetermineEntitlement:       validatePayload[dto.DetermineEntitlementPayload],
	config.JobTypeMakePayment:                validatePayload[dto.MakePaymentPayload],
	config.JobTypeAdditionalPregnancyPayment: validatePayload[dto.MakePaymentPayload],
	config.JobTypeSendEmail:                  validatePayload[dto.EmailPayload],
	config.JobTypeSendLetter:                 validatePayload[dto.LetterPayload],
	config.JobTypeReportClaim:                validatePayload[dto.ReportClaimPayload],
	config.JobTypeReportPayment:              validatePayload[dto.ReportPaymentPayload],
}

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return jobError(ErrSerialization, "payload does not match %T: %v", payload, err)
	}

	if err := validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &PayloadError{Fields: middleware.FormatValidationErrors(verrs)}
		}
		return jobError(ErrInvalidPayload, "%v", err)
	}

	return nil
}
