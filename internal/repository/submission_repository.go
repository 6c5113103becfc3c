package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/database"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
)

// syncColumns maps a sink to its sync flag column.
var syncColumns = map[string]string{
	dispatch.SinkDebt:        "synced_debt",
	dispatch.SinkInteraction: "synced_interaction",
	dispatch.SinkCare:        "synced_care",
}

// SubmissionRepository handles non-payment submission records.
//
// Date-only columns are written as YYYY-MM-DD in the business location and
// read back at midnight in that location.
type SubmissionRepository struct {
	db  *database.DB
	loc *time.Location
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *database.DB, loc *time.Location) *SubmissionRepository {
	return &SubmissionRepository{db: db, loc: loc}
}

const submissionColumns = `
	id, contract_id, staff_account, staff_name,
	reason_level1, reason_level2, COALESCE(reason_level3, ''), note,
	appointment_date, appointment_time, lock_option, lock_date, COALESCE(lock_status, ''),
	dispatch_status, synced_debt, synced_interaction, synced_care, last_sync_at,
	created_at, updated_at
`

// Create inserts rec, assigning its id when empty.
func (r *SubmissionRepository) Create(ctx context.Context, rec *domain.SubmissionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.DispatchPending
	}
	d := rec.Draft
	query := `
		INSERT INTO nonpayment_submissions (
			id, contract_id, staff_account, staff_name,
			reason_level1, reason_level2, reason_level3, note,
			appointment_date, appointment_time, lock_option, lock_date, lock_status,
			dispatch_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9::date, $10, $11, $12::date, NULLIF($13, ''), $14, $15, $15)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.ContractID,
		rec.StaffAccount,
		rec.StaffName,
		d.ReasonLevel1,
		d.ReasonLevel2,
		d.ReasonLevel3,
		d.Note,
		r.dateArg(d.AppointmentDate),
		d.AppointmentTime,
		string(d.LockOption),
		r.dateArg(d.LockDate),
		string(d.LockStatus),
		string(rec.Status),
		rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create submission")
	}
	rec.UpdatedAt = rec.CreatedAt
	return nil
}

// MarkSynced sets the sync flag of sink on record id.
func (r *SubmissionRepository) MarkSynced(ctx context.Context, id, sink string, at time.Time) error {
	column, ok := syncColumns[sink]
	if !ok {
		return fmt.Errorf("unknown sink %q", sink)
	}
	query := fmt.Sprintf(`
		UPDATE nonpayment_submissions
		SET %s = TRUE, last_sync_at = $2, updated_at = $2
		WHERE id = $1
	`, column)

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark submission synced")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("submission", id)
	}
	return nil
}

// SetStatus records where record id stands in the dispatch chain.
func (r *SubmissionRepository) SetStatus(ctx context.Context, id string, status domain.DispatchStatus, at time.Time) error {
	query := `
		UPDATE nonpayment_submissions
		SET dispatch_status = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to set dispatch status")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("submission", id)
	}
	return nil
}

// Get returns record id.
func (r *SubmissionRepository) Get(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	query := `SELECT ` + submissionColumns + ` FROM nonpayment_submissions WHERE id = $1`
	rec, err := r.scan(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("submission", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get submission")
	}
	return rec, nil
}

// Latest returns the newest dispatched record of contractID.
func (r *SubmissionRepository) Latest(ctx context.Context, contractID string) (*domain.SubmissionRecord, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM nonpayment_submissions
		WHERE contract_id = $1 AND dispatch_status = 'dispatched'
		ORDER BY created_at DESC
		LIMIT 1
	`
	rec, err := r.scan(r.db.QueryRow(ctx, query, contractID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("submission for contract", contractID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get latest submission")
	}
	return rec, nil
}

// ListByContract returns the dispatched records of contractID created in
// [from, to), newest first.
func (r *SubmissionRepository) ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]domain.SubmissionRecord, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM nonpayment_submissions
		WHERE contract_id = $1 AND dispatch_status = 'dispatched'
		  AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, contractID, from, to)
	if err != nil {
		return nil, errors.Unavailable("failed to list submissions", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SubmissionRecord, error) {
		rec, err := r.scan(row)
		if err != nil {
			return domain.SubmissionRecord{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, errors.Unavailable("failed to scan submissions", err)
	}
	return records, nil
}

// UpdateLockSchedule replaces the lock fields of record id.
func (r *SubmissionRepository) UpdateLockSchedule(ctx context.Context, id string, draft domain.SubmissionDraft, at time.Time) (*domain.SubmissionRecord, error) {
	query := `
		UPDATE nonpayment_submissions
		SET lock_option = $2, lock_date = $3::date, lock_status = NULLIF($4, ''), updated_at = $5
		WHERE id = $1
		RETURNING ` + submissionColumns

	rec, err := r.scan(r.db.QueryRow(ctx, query, id, string(draft.LockOption), r.dateArg(draft.LockDate), string(draft.LockStatus), at))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("submission", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update lock schedule")
	}
	return rec, nil
}

func (r *SubmissionRepository) scan(row pgx.Row) (*domain.SubmissionRecord, error) {
	var (
		rec             domain.SubmissionRecord
		lockOption      string
		lockStatus      string
		status          string
		appointmentDate *time.Time
		lockDate        *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.ContractID, &rec.StaffAccount, &rec.StaffName,
		&rec.Draft.ReasonLevel1, &rec.Draft.ReasonLevel2, &rec.Draft.ReasonLevel3, &rec.Draft.Note,
		&appointmentDate, &rec.Draft.AppointmentTime, &lockOption, &lockDate, &lockStatus,
		&status, &rec.SyncedDebt, &rec.SyncedInteraction, &rec.SyncedCare, &rec.LastSyncAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.DispatchStatus(status)
	rec.Draft.LockOption = domain.LockOption(lockOption)
	rec.Draft.LockStatus = domain.LockStatus(lockStatus)
	rec.Draft.AppointmentDate = r.localDate(appointmentDate)
	rec.Draft.LockDate = r.localDate(lockDate)
	return &rec, nil
}

func (r *SubmissionRepository) dateArg(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.In(r.loc).Format(domain.DateLayout)
	return &s
}

// localDate re-anchors a DATE value (scanned as UTC midnight) in r.loc.
func (r *SubmissionRepository) localDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	local := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return &local
}
