package service

import (
	"context"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/metrics"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
)

// ReasonService serves the reason taxonomy to the transports. Read failures
// are counted, logged and returned as UNAVAILABLE.
type ReasonService struct {
	provider taxonomy.Provider
	log      *logger.Logger
}

// NewReasonService creates a new reason service
func NewReasonService(provider taxonomy.Provider, log *logger.Logger) *ReasonService {
	return &ReasonService{provider: provider, log: log}
}

func (s *ReasonService) ListLevel1(ctx context.Context) ([]domain.ReasonNode, error) {
	nodes, err := s.provider.ListLevel1(ctx)
	return s.result("1", nodes, err)
}

func (s *ReasonService) ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error) {
	nodes, err := s.provider.ListLevel2(ctx, level1ID)
	return s.result("2", nodes, err)
}

func (s *ReasonService) ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error) {
	nodes, err := s.provider.ListLevel3(ctx, level1ID, level2ID)
	return s.result("3", nodes, err)
}

func (s *ReasonService) result(level string, nodes []domain.ReasonNode, err error) ([]domain.ReasonNode, error) {
	if err != nil {
		metrics.TaxonomyFetchFailure(level)
		s.log.Warn().Err(err).Str("level", level).Msg("Failed to list reasons")
		return nil, errors.Unavailable("reasons unavailable", err)
	}
	if nodes == nil {
		nodes = []domain.ReasonNode{}
	}
	return nodes, nil
}
