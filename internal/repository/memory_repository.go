package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
)

// MemorySubmissionRepository keeps submissions in process memory. It is
// used when no DATABASE_URL is configured and by tests.
type MemorySubmissionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.SubmissionRecord
}

// NewMemorySubmissionRepository creates an empty in-memory repository.
func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{records: make(map[string]*domain.SubmissionRecord)}
}

func (r *MemorySubmissionRepository) Create(ctx context.Context, rec *domain.SubmissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.DispatchPending
	}
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *MemorySubmissionRepository) MarkSynced(ctx context.Context, id, sink string, at time.Time) error {
	if _, ok := syncColumns[sink]; !ok {
		return fmt.Errorf("unknown sink %q", sink)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errors.NotFound("submission", id)
	}
	switch syncColumns[sink] {
	case "synced_debt":
		rec.SyncedDebt = true
	case "synced_interaction":
		rec.SyncedInteraction = true
	case "synced_care":
		rec.SyncedCare = true
	}
	rec.LastSyncAt = &at
	rec.UpdatedAt = at
	return nil
}

func (r *MemorySubmissionRepository) SetStatus(ctx context.Context, id string, status domain.DispatchStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errors.NotFound("submission", id)
	}
	rec.Status = status
	rec.UpdatedAt = at
	return nil
}

func (r *MemorySubmissionRepository) Get(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, errors.NotFound("submission", id)
	}
	cp := *rec
	return &cp, nil
}

func (r *MemorySubmissionRepository) Latest(ctx context.Context, contractID string) (*domain.SubmissionRecord, error) {
	all := r.byContract(contractID, time.Time{}, time.Time{})
	if len(all) == 0 {
		return nil, errors.NotFound("submission for contract", contractID)
	}
	return &all[0], nil
}

func (r *MemorySubmissionRepository) ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]domain.SubmissionRecord, error) {
	return r.byContract(contractID, from, to), nil
}

func (r *MemorySubmissionRepository) UpdateLockSchedule(ctx context.Context, id string, draft domain.SubmissionDraft, at time.Time) (*domain.SubmissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, errors.NotFound("submission", id)
	}
	rec.Draft.LockOption = draft.LockOption
	rec.Draft.LockDate = draft.LockDate
	rec.Draft.LockStatus = draft.LockStatus
	rec.UpdatedAt = at
	cp := *rec
	return &cp, nil
}

// byContract returns copies of dispatched records newest first. Zero bounds
// are open.
func (r *MemorySubmissionRepository) byContract(contractID string, from, to time.Time) []domain.SubmissionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.SubmissionRecord
	for _, rec := range r.records {
		if rec.ContractID != contractID || rec.Status != domain.DispatchDispatched {
			continue
		}
		if !from.IsZero() && rec.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !rec.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
