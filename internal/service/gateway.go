package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
)

// TokenValidator validates an opaque bearer credential and yields the
// principal id it was issued to. Satisfied by AuthService.
type TokenValidator interface {
	ValidateToken(tokenString string) (uint, error)
}

// PermissionGateway answers "may principal P open document D, and at what
// role?". It must be consulted before any room attachment; a failed
// authorization never creates or touches a room.
type PermissionGateway struct {
	tokens    TokenValidator
	userRepo  repository.UserRepository
	docRepo   repository.DocumentRepository
	shareRepo repository.ShareRepository
}

func NewPermissionGateway(tokens TokenValidator, userRepo repository.UserRepository, docRepo repository.DocumentRepository, shareRepo repository.ShareRepository) *PermissionGateway {
	if tokens == nil || userRepo == nil || docRepo == nil || shareRepo == nil {
		panic("all dependencies must be non-nil for PermissionGateway")
	}
	return &PermissionGateway{
		tokens:    tokens,
		userRepo:  userRepo,
		docRepo:   docRepo,
		shareRepo: shareRepo,
	}
}

// Authorize validates the token, then resolves the caller's role on the
// document. Returns ErrAuthenticationFailed for a bad token,
// ErrDocumentNotFound when the document has no backing record, and
// ErrPermissionDenied when the principal holds neither ownership nor a grant.
func (g *PermissionGateway) Authorize(ctx context.Context, token string, documentID uint) (*domain.User, domain.Role, error) {
	userID, err := g.tokens.ValidateToken(token)
	if err != nil {
		return nil, "", ErrAuthenticationFailed
	}
	user, err := g.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrAuthenticationFailed
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Gateway: failed to load principal")
		return nil, "", ErrInternalServer
	}
	role, err := g.RoleForUser(ctx, userID, documentID)
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, role, nil
}

// RoleForUser resolves a principal's role on a document from ownership or a
// share grant. Used directly by the REST handlers, whose token has already
// been validated by the auth middleware.
func (g *PermissionGateway) RoleForUser(ctx context.Context, userID, documentID uint) (domain.Role, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "document_id": documentID})

	doc, err := g.docRepo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return "", ErrDocumentNotFound
		}
		logCtx.WithError(err).Error("Gateway: failed to load document")
		return "", ErrInternalServer
	}
	if doc.OwnerID == userID {
		return domain.RoleOwner, nil
	}

	grant, err := g.shareRepo.FindGrant(ctx, documentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrGrantNotFound) {
			logCtx.Debug("Gateway: no share grant for principal")
			return "", ErrPermissionDenied
		}
		logCtx.WithError(err).Error("Gateway: failed to load share grant")
		return "", ErrInternalServer
	}
	if !grant.Role.Valid() {
		logCtx.Warnf("Gateway: grant carries unknown role %q, demoting to viewer", grant.Role)
		return domain.RoleViewer, nil
	}
	return grant.Role, nil
}
