package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository/mocks"
	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

type fixture struct {
	svc       *service.DocumentService
	userRepo  *mocks.UserRepository
	docRepo   *mocks.DocumentRepository
	shareRepo *mocks.ShareRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userRepo := new(mocks.UserRepository)
	docRepo := new(mocks.DocumentRepository)
	shareRepo := new(mocks.ShareRepository)
	gw := service.NewPermissionGateway(stubTokenValidator{}, userRepo, docRepo, shareRepo)
	return &fixture{
		svc:       service.NewDocumentService(docRepo, userRepo, shareRepo, gw),
		userRepo:  userRepo,
		docRepo:   docRepo,
		shareRepo: shareRepo,
	}
}

func TestCreateDefaultsTitle(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("Save", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.OwnerID == 1 && d.Title == "Untitled document"
	})).Return(nil)

	doc, err := f.svc.Create(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled document", doc.Title)
}

func TestUpdateRejectsViewer(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.shareRepo.On("FindGrant", mock.Anything, uint(1), uint(2)).
		Return(&domain.ShareGrant{DocumentID: 1, GranteeID: 2, Role: domain.RoleViewer}, nil)

	_, err := f.svc.Update(context.Background(), 2, 1, "t", "c")
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
	f.docRepo.AssertNotCalled(t, "SaveContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.shareRepo.On("FindGrant", mock.Anything, uint(1), uint(2)).
		Return(&domain.ShareGrant{DocumentID: 1, GranteeID: 2, Role: domain.RoleEditor}, nil)

	err := f.svc.Delete(context.Background(), 2, 1)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestDeleteRemovesGrantsFirst(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.shareRepo.On("DeleteForDocument", mock.Anything, uint(1)).Return(nil)
	f.docRepo.On("Delete", mock.Anything, uint(1)).Return(nil)

	err := f.svc.Delete(context.Background(), 9, 1)
	require.NoError(t, err)
	f.shareRepo.AssertExpectations(t)
	f.docRepo.AssertExpectations(t)
}

func TestShareUpsertsGrant(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.userRepo.On("FindByEmail", mock.Anything, "bob@example.com").
		Return(&domain.User{ID: 3, Email: "bob@example.com"}, nil)
	f.shareRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(g *domain.ShareGrant) bool {
		return g.DocumentID == 1 && g.GranteeID == 3 && g.Role == domain.RoleEditor
	})).Return(nil)

	grant, err := f.svc.Share(context.Background(), 9, 1, "bob@example.com", domain.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, uint(3), grant.GranteeID)
}

func TestShareRejectsOwnerRole(t *testing.T) {
	f := newFixture(t)

	// Ownership is never grantable through sharing.
	_, err := f.svc.Share(context.Background(), 9, 1, "bob@example.com", domain.RoleOwner)
	assert.ErrorIs(t, err, service.ErrInvalidRole)
}

func TestShareRejectsNonOwnerActor(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.shareRepo.On("FindGrant", mock.Anything, uint(1), uint(2)).
		Return(&domain.ShareGrant{DocumentID: 1, GranteeID: 2, Role: domain.RoleEditor}, nil)

	_, err := f.svc.Share(context.Background(), 2, 1, "bob@example.com", domain.RoleViewer)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestShareUnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	f.userRepo.On("FindByEmail", mock.Anything, "ghost@example.com").
		Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.Share(context.Background(), 9, 1, "ghost@example.com", domain.RoleViewer)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
