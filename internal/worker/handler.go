package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
)

var validate = validator.New()

// ClaimClients are the downstream services the claim handlers call.
type ClaimClients struct {
	Card      RemoteClient
	Payment   RemoteClient
	Notify    RemoteClient
	Reporting RemoteClient
}

// postHandler decodes a typed payload and forwards it to one endpoint.
type postHandler[T any] struct {
	client RemoteClient
	path   func(T) string
	expect int
}

func (h postHandler[T]) Handle(ctx context.Context, msg Message) Outcome {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Fatal(fmt.Sprintf("decode %s payload: %v", msg.Type, err))
	}
	if err := validate.Struct(payload); err != nil {
		return Fatal(fmt.Sprintf("invalid %s payload: %v", msg.Type, err))
	}

	err := h.client.Post(ctx, RemoteRequest{
		Path:           h.path(payload),
		IdempotencyKey: msg.IdempotencyKey(),
		Body:           payload,
		ExpectStatus:   h.expect,
	})
	return classify(err)
}

func fixedPath[T any](path string) func(T) string {
	return func(T) string { return path }
}

// classify turns a downstream error into an outcome.
func classify(err error) Outcome {
	if err == nil {
		return Succeeded()
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && !remoteErr.Retryable() {
		return Fatal(remoteErr.Error())
	}
	return Retry(err.Error())
}

// RegisterClaimHandlers registers a handler for every claim job type.
func RegisterClaimHandlers(r *Registry, c ClaimClients) error {
	handlers := map[config.JobType]Handler{
		config.JobTypeRequestNewCard: postHandler[dto.NewCardRequestPayload]{
			client: c.Card,
			path:   fixedPath[dto.NewCardRequestPayload]("/v1/cards"),
			expect: http.StatusCreated,
		},
		config.JobTypeCompleteNewCardProcess: postHandler[dto.CompleteNewCardPayload]{
			client: c.Card,
			path: func(p dto.CompleteNewCardPayload) string {
				return "/v1/cards/" + url.PathEscape(p.CardAccountID) + "/complete"
			},
		},
		config.JobTypeDetermineEntitlement: postHandler[dto.DetermineEntitlementPayload]{
			client: c.Payment,
			path:   fixedPath[dto.DetermineEntitlementPayload]("/v1/entitlements"),
		},
		config.JobTypeMakePayment: postHandler[dto.MakePaymentPayload]{
			client: c.Payment,
			path:   fixedPath[dto.MakePaymentPayload]("/v1/payments"),
			expect: http.StatusCreated,
		},
		config.JobTypeAdditionalPregnancyPayment: postHandler[dto.MakePaymentPayload]{
			client: c.Payment,
			path:   fixedPath[dto.MakePaymentPayload]("/v1/payments/pregnancy"),
			expect: http.StatusCreated,
		},
		config.JobTypeSendEmail: postHandler[dto.EmailPayload]{
			client: c.Notify,
			path:   fixedPath[dto.EmailPayload]("/v1/emails"),
			expect: http.StatusCreated,
		},
		config.JobTypeSendLetter: postHandler[dto.LetterPayload]{
			client: c.Notify,
			path:   fixedPath[dto.LetterPayload]("/v1/letters"),
			expect: http.StatusCreated,
		},
		config.JobTypeReportClaim: postHandler[dto.ReportClaimPayload]{
			client: c.Reporting,
			path:   fixedPath[dto.ReportClaimPayload]("/v1/events/claims"),
		},
		config.JobTypeReportPayment: postHandler[dto.ReportPaymentPayload]{
			client: c.Reporting,
			path:   fixedPath[dto.ReportPaymentPayload]("/v1/events/payments"),
		},
	}

	for _, t := range config.AllowedJobTypes {
		h, ok := handlers[t]
		if !ok {
			continue
		}
		if err := r.Register(t, h); err != nil {
			return err
		}
	}
	return nil
}
