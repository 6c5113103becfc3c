// Package taxonomy serves the three-level non-payment reason tree.
package taxonomy

import (
	"context"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

// Provider answers reason-tree queries. Unknown ids yield an empty slice,
// not an error; errors are transient read failures.
type Provider interface {
	ListLevel1(ctx context.Context) ([]domain.ReasonNode, error)
	ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error)
	// ListLevel3 keys on level2ID; level1ID is accepted for symmetry.
	ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error)
}

// Selection is the taxonomy's view of a draft's reason choice.
type Selection struct {
	Level3Available bool
	Errors          domain.ValidationErrors
}

// Inspect checks that each non-empty reason code is a child of the level
// above it and reports whether level 3 applies to the (level1, level2) pair.
// Empty codes are left to the validation engine.
func Inspect(ctx context.Context, p Provider, level1, level2, level3 string) (Selection, error) {
	sel := Selection{Errors: domain.ValidationErrors{}}
	if level1 == "" {
		return sel, nil
	}

	l1, err := p.ListLevel1(ctx)
	if err != nil {
		return sel, err
	}
	if !contains(l1, level1) {
		sel.Errors.Add(validation.FieldReasonLevel1, validation.InvalidReasonMessage(validation.FieldReasonLevel1))
		return sel, nil
	}
	if level2 == "" {
		return sel, nil
	}

	l2, err := p.ListLevel2(ctx, level1)
	if err != nil {
		return sel, err
	}
	if !contains(l2, level2) {
		sel.Errors.Add(validation.FieldReasonLevel2, validation.InvalidReasonMessage(validation.FieldReasonLevel2))
		return sel, nil
	}

	l3, err := p.ListLevel3(ctx, level1, level2)
	if err != nil {
		return sel, err
	}
	sel.Level3Available = len(l3) > 0
	if level3 != "" && !contains(l3, level3) {
		sel.Errors.Add(validation.FieldReasonLevel3, validation.InvalidReasonMessage(validation.FieldReasonLevel3))
	}
	return sel, nil
}

func contains(nodes []domain.ReasonNode, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
