package service

import (
	"context"
	"sort"
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
)

// HistoryService serves the monthly submission history of a contract.
type HistoryService struct {
	store    SubmissionStore
	identity IdentityClientInterface
	now      func() time.Time
	log      *logger.Logger
}

// NewHistoryService creates a new history service. now must return times
// in the business location.
func NewHistoryService(store SubmissionStore, identity IdentityClientInterface, now func() time.Time, log *logger.Logger) *HistoryService {
	return &HistoryService{store: store, identity: identity, now: now, log: log}
}

// List returns the records of contractID created in the given month, most
// recent first. A zero month or year means the current one.
func (s *HistoryService) List(ctx context.Context, contractID string, month time.Month, year int) ([]domain.HistoryRecord, error) {
	now := s.now()
	if month == 0 {
		month = now.Month()
	}
	if year == 0 {
		year = now.Year()
	}
	if month < time.January || month > time.December {
		return nil, errors.InvalidInput("month", "month must be between 1 and 12")
	}

	from, to := domain.MonthRange(year, month, now.Location())
	records, err := s.store.ListByContract(ctx, contractID, from, to)
	if err != nil {
		s.log.Warn().Err(err).Str("contract_id", contractID).Msg("Failed to load history")
		return nil, errors.Unavailable("history unavailable", err)
	}

	history := make([]domain.HistoryRecord, 0, len(records))
	names := map[string]string{}
	for _, rec := range records {
		created := rec.CreatedAt.In(now.Location())
		if created.Before(from) || !created.Before(to) {
			continue
		}
		h := rec.History()
		if h.StaffName == "" {
			h.StaffName = s.staffName(ctx, names, h.StaffAccount)
		}
		history = append(history, h)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedDate.After(history[j].CreatedDate)
	})
	return history, nil
}

// staffName resolves a display name once per account. Lookup failures
// leave the name empty.
func (s *HistoryService) staffName(ctx context.Context, cache map[string]string, account string) string {
	if name, ok := cache[account]; ok {
		return name
	}
	name := ""
	if s.identity != nil {
		if u, err := s.identity.LookupUser(ctx, account); err == nil {
			name = u.Name
		}
	}
	cache[account] = name
	return name
}
