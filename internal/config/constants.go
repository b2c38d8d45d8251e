package config

import "slices"

type JobStatus string

type JobType string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

const (
	JobTypeRequestNewCard             JobType = "REQUEST_NEW_CARD"
	JobTypeCompleteNewCardProcess     JobType = "COMPLETE_NEW_CARD_PROCESS"
	JobTypeDetermineEntitlement       JobType = "DETERMINE_ENTITLEMENT"
	JobTypeMakePayment                JobType = "MAKE_PAYMENT"
	JobTypeAdditionalPregnancyPayment JobType = "ADDITIONAL_PREGNANCY_PAYMENT"
	JobTypeSendEmail                  JobType = "SEND_EMAIL"
	JobTypeSendLetter                 JobType = "SEND_LETTER"
	JobTypeReportClaim                JobType = "REPORT_CLAIM"
	JobTypeReportPayment              JobType = "REPORT_PAYMENT"
)

var (
	AllowedJobTypes = []JobType{
		JobTypeRequestNewCard,
		JobTypeCompleteNewCardProcess,
		JobTypeDetermineEntitlement,
		JobTypeMakePayment,
		JobTypeAdditionalPregnancyPayment,
		JobTypeSendEmail,
		JobTypeSendLetter,
		JobTypeReportClaim,
		JobTypeReportPayment,
	}

	// OffsetJobTypes fire on the offset schedule so reporting does not
	// compete with payment-critical types.
	OffsetJobTypes = []JobType{JobTypeReportClaim, JobTypeReportPayment}

	AllowedStatuses = []JobStatus{JobStatusPending, JobStatusCompleted, JobStatusFailed}
)

func (t JobType) Valid() bool {
	return slices.Contains(AllowedJobTypes, t)
}

func (t JobType) Offset() bool {
	return slices.Contains(OffsetJobTypes, t)
}

func (s JobStatus) Valid() bool {
	return slices.Contains(AllowedStatuses, s)
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
