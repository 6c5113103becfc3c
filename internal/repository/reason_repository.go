package repository

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/database"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
)

// ReasonRepository reads the reason taxonomy from Postgres. It implements
// taxonomy.Provider.
type ReasonRepository struct {
	db *database.DB
}

// NewReasonRepository creates a new reason repository
func NewReasonRepository(db *database.DB) *ReasonRepository {
	return &ReasonRepository{db: db}
}

// Children are served only while their parent chain is active.
const reasonColumns = `r.id, r.name, r.level, COALESCE(r.parent_id, ''), r.is_active`

// ListLevel1 returns every active level-1 reason.
func (r *ReasonRepository) ListLevel1(ctx context.Context) ([]domain.ReasonNode, error) {
	query := `
		SELECT ` + reasonColumns + `
		FROM nonpayment_reasons r
		WHERE r.level = 1 AND r.is_active
		ORDER BY r.sort_order, r.id
	`
	return r.list(ctx, query)
}

// ListLevel2 returns the active level-2 children of level1ID.
func (r *ReasonRepository) ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error) {
	query := `
		SELECT ` + reasonColumns + `
		FROM nonpayment_reasons r
		JOIN nonpayment_reasons p ON p.id = r.parent_id AND p.level = 1 AND p.is_active
		WHERE r.level = 2 AND r.is_active AND r.parent_id = $1
		ORDER BY r.sort_order, r.id
	`
	return r.list(ctx, query, level1ID)
}

// ListLevel3 returns the active level-3 children of level2ID. level1ID is
// not part of the key.
func (r *ReasonRepository) ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error) {
	query := `
		SELECT ` + reasonColumns + `
		FROM nonpayment_reasons r
		JOIN nonpayment_reasons p ON p.id = r.parent_id AND p.level = 2 AND p.is_active
		JOIN nonpayment_reasons g ON g.id = p.parent_id AND g.is_active
		WHERE r.level = 3 AND r.is_active AND r.parent_id = $1
		ORDER BY r.sort_order, r.id
	`
	return r.list(ctx, query, level2ID)
}

func (r *ReasonRepository) list(ctx context.Context, query string, args ...any) ([]domain.ReasonNode, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Unavailable("failed to list reasons", err)
	}

	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReasonNode, error) {
		var n domain.ReasonNode
		err := row.Scan(&n.ID, &n.Name, &n.Level, &n.ParentID, &n.Active)
		return n, err
	})
	if err != nil {
		return nil, errors.Unavailable("failed to scan reasons", err)
	}
	if nodes == nil {
		nodes = []domain.ReasonNode{}
	}
	return nodes, nil
}

// Upsert writes nodes in one transaction. Used to seed the table from a
// TOML reason file.
func (r *ReasonRepository) Upsert(ctx context.Context, nodes []domain.ReasonNode) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO nonpayment_reasons (id, name, level, parent_id, is_active, sort_order)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    level = EXCLUDED.level,
			    parent_id = EXCLUDED.parent_id,
			    is_active = EXCLUDED.is_active,
			    sort_order = EXCLUDED.sort_order
		`
		// Levels ascending so every parent row exists before its children.
		order := make([]int, len(nodes))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return nodes[order[a]].Level < nodes[order[b]].Level })

		for _, i := range order {
			n := nodes[i]
			if _, err := tx.Exec(ctx, query, n.ID, n.Name, n.Level, n.ParentID, n.Active, i); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert reason "+n.ID)
			}
		}
		return nil
	})
}
