package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
)

const maxHistoryLimit = 100

// HistoryService serves a document's recent operation feed out of the
// ephemeral cache. The feed only exists while a room is (or recently was)
// live; an empty result is normal, not an error.
type HistoryService struct {
	state   repository.StateRepository
	gateway *PermissionGateway
}

func NewHistoryService(state repository.StateRepository, gateway *PermissionGateway) *HistoryService {
	if state == nil || gateway == nil {
		panic("all dependencies must be non-nil for HistoryService")
	}
	return &HistoryService{state: state, gateway: gateway}
}

// RecentOperations returns up to limit recent operations, oldest first.
// Requires at least viewer access.
func (s *HistoryService) RecentOperations(ctx context.Context, userID, documentID uint, limit int) ([]domain.Operation, error) {
	if _, err := s.gateway.RoleForUser(ctx, userID, documentID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	ops, err := s.state.GetRecentOperations(ctx, documentID, limit)
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Error("Failed to load recent operations")
		return nil, ErrInternalServer
	}
	return ops, nil
}
