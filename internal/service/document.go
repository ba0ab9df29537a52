package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
)

// DocumentService owns document metadata CRUD and share grants. It sits
// outside the sync core's hot path; the room registry and reconciler talk to
// the document repository directly.
type DocumentService struct {
	docRepo   repository.DocumentRepository
	userRepo  repository.UserRepository
	shareRepo repository.ShareRepository
	gateway   *PermissionGateway
}

func NewDocumentService(docRepo repository.DocumentRepository, userRepo repository.UserRepository, shareRepo repository.ShareRepository, gateway *PermissionGateway) *DocumentService {
	if docRepo == nil || userRepo == nil || shareRepo == nil || gateway == nil {
		panic("all dependencies must be non-nil for DocumentService")
	}
	return &DocumentService{
		docRepo:   docRepo,
		userRepo:  userRepo,
		shareRepo: shareRepo,
		gateway:   gateway,
	}
}

// Create makes the caller the owner of a fresh document.
func (s *DocumentService) Create(ctx context.Context, ownerID uint, title string) (*domain.Document, error) {
	if title == "" {
		title = "Untitled document"
	}
	doc := &domain.Document{OwnerID: ownerID, Title: title}
	if err := s.docRepo.Save(ctx, doc); err != nil {
		logrus.WithError(err).WithField("owner_id", ownerID).Error("Failed to create document")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"document_id": doc.ID, "owner_id": ownerID}).Info("Document created")
	return doc, nil
}

// List returns the documents the caller owns or has been granted access to.
func (s *DocumentService) List(ctx context.Context, userID uint) ([]domain.Document, error) {
	docs, err := s.docRepo.ListForUser(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list documents")
		return nil, ErrInternalServer
	}
	return docs, nil
}

// Get returns the document when the caller holds at least viewer access.
func (s *DocumentService) Get(ctx context.Context, userID, documentID uint) (*domain.Document, error) {
	if _, err := s.gateway.RoleForUser(ctx, userID, documentID); err != nil {
		return nil, err
	}
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, ErrInternalServer
	}
	return doc, nil
}

// Update writes title and content on behalf of an editor or owner. With a
// live room the room snapshot stays authoritative until its next flush; this
// path serves the plain REST clients.
func (s *DocumentService) Update(ctx context.Context, userID, documentID uint, title, content string) (*domain.Document, error) {
	role, err := s.gateway.RoleForUser(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if !role.CanEdit() {
		return nil, ErrPermissionDenied
	}
	if err := s.docRepo.SaveContent(ctx, documentID, title, content); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		logrus.WithError(err).WithField("document_id", documentID).Error("Failed to update document")
		return nil, ErrInternalServer
	}
	return s.docRepo.FindByID(ctx, documentID)
}

// Delete removes a document and its grants. Owner only.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	role, err := s.gateway.RoleForUser(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if role != domain.RoleOwner {
		return ErrPermissionDenied
	}
	if err := s.shareRepo.DeleteForDocument(ctx, documentID); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Error("Failed to delete share grants")
		return ErrInternalServer
	}
	if err := s.docRepo.Delete(ctx, documentID); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		logrus.WithError(err).WithField("document_id", documentID).Error("Failed to delete document")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"document_id": documentID, "user_id": userID}).Info("Document deleted")
	return nil
}

// Share grants email-addressed access at the requested role. Owner only;
// only viewer and editor are grantable, ownership never transfers here.
func (s *DocumentService) Share(ctx context.Context, actorID, documentID uint, email string, role domain.Role) (*domain.ShareGrant, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"actor_id":    actorID,
		"email":       email,
		"role":        role,
	})

	if role != domain.RoleViewer && role != domain.RoleEditor {
		return nil, ErrInvalidRole
	}
	actorRole, err := s.gateway.RoleForUser(ctx, actorID, documentID)
	if err != nil {
		return nil, err
	}
	if actorRole != domain.RoleOwner {
		return nil, ErrPermissionDenied
	}

	grantee, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Share failed: no registered user for email")
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Share failed: error resolving grantee")
		return nil, ErrInternalServer
	}
	if grantee.ID == actorID {
		return nil, fmt.Errorf("%w: cannot share a document with its owner", ErrInvalidRole)
	}

	grant := &domain.ShareGrant{DocumentID: documentID, GranteeID: grantee.ID, Role: role}
	if err := s.shareRepo.Upsert(ctx, grant); err != nil {
		logCtx.WithError(err).Error("Share failed: error saving grant")
		return nil, ErrInternalServer
	}
	logCtx.WithField("grantee_id", grantee.ID).Info("Document shared")
	return grant, nil
}
