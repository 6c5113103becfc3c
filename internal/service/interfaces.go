package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

// IdentityClientInterface resolves a staff account to its active user.
// Unknown accounts fail with UNAUTHORIZED.
type IdentityClientInterface interface {
	LookupUser(ctx context.Context, account string) (*domain.ActiveUser, error)
}

// SubmissionStore persists accepted submissions and their sync flags.
// Latest and ListByContract only return dispatched records.
type SubmissionStore interface {
	Create(ctx context.Context, rec *domain.SubmissionRecord) error
	MarkSynced(ctx context.Context, id, sink string, at time.Time) error
	SetStatus(ctx context.Context, id string, status domain.DispatchStatus, at time.Time) error
	Get(ctx context.Context, id string) (*domain.SubmissionRecord, error)
	Latest(ctx context.Context, contractID string) (*domain.SubmissionRecord, error)
	ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]domain.SubmissionRecord, error)
	UpdateLockSchedule(ctx context.Context, id string, draft domain.SubmissionDraft, at time.Time) (*domain.SubmissionRecord, error)
}

// EventPublisherInterface announces accepted submissions. Implementations
// must not fail the caller.
type EventPublisherInterface interface {
	PublishAccepted(ctx context.Context, rec *domain.SubmissionRecord)
}
