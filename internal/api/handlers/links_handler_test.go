package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/galleryplan/engine/internal/api/validators"
	"github.com/galleryplan/engine/internal/models"
	"github.com/galleryplan/engine/internal/services"
	appErr "github.com/galleryplan/engine/pkg/errors"
)

type mockLinkService struct {
	mock.Mock
}

func (m *mockLinkService) AddArtwork(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.Project, bool, error) {
	args := m.Called(ctx, projectID, externalID)
	var p *models.Project
	if v := args.Get(0); v != nil {
		p = v.(*models.Project)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *mockLinkService) UpdateLink(ctx context.Context, projectID uuid.UUID, externalID uint, updates *services.UpdateLinkInput) (*models.ProjectArtwork, *models.Project, error) {
	args := m.Called(ctx, projectID, externalID, updates)
	var link *models.ProjectArtwork
	if v := args.Get(0); v != nil {
		link = v.(*models.ProjectArtwork)
	}
	var p *models.Project
	if v := args.Get(1); v != nil {
		p = v.(*models.Project)
	}
	return link, p, args.Error(2)
}

func (m *mockLinkService) ListLinks(ctx context.Context, projectID uuid.UUID) ([]models.ProjectArtwork, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]models.ProjectArtwork), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkService) GetLink(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.ProjectArtwork, error) {
	args := m.Called(ctx, projectID, externalID)
	if v := args.Get(0); v != nil {
		return v.(*models.ProjectArtwork), args.Error(1)
	}
	return nil, args.Error(1)
}

func newLinksRouter(svc services.LinkService) http.Handler {
	h := NewLinksHandler(svc, validators.New())
	r := chi.NewRouter()
	r.Post("/projects/{id}/artworks", h.Add)
	r.Patch("/projects/{id}/artworks/{externalID}", h.Update)
	return r
}

func TestLinksHandler_Add(t *testing.T) {
	projectID := uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := &mockLinkService{}
		svc.On("AddArtwork", mock.Anything, projectID, uint(129884)).
			Return(&models.Project{ID: projectID, Name: "Moderns"}, true, nil).Once()

		body := `{"artwork_id":129884}`
		req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/artworks", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.Contains(t, rr.Body.String(), `"created":true`)
		svc.AssertExpectations(t)
	})

	t.Run("already linked returns ok", func(t *testing.T) {
		svc := &mockLinkService{}
		svc.On("AddArtwork", mock.Anything, projectID, uint(129884)).
			Return(&models.Project{ID: projectID, Name: "Moderns"}, false, nil).Once()

		body := `{"artwork_id":129884}`
		req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/artworks", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), `"created":false`)
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		svc := &mockLinkService{}
		svc.On("AddArtwork", mock.Anything, projectID, uint(42)).
			Return(nil, false, appErr.New(appErr.CodeCapacityExceeded, "project artwork limit reached")).Once()

		body := `{"artwork_id":42}`
		req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/artworks", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusConflict, rr.Code)
		require.Contains(t, rr.Body.String(), `"capacity_exceeded"`)
	})

	t.Run("zero artwork id rejected", func(t *testing.T) {
		svc := &mockLinkService{}
		body := `{"artwork_id":0}`
		req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/artworks", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "AddArtwork")
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc := &mockLinkService{}
		svc.On("AddArtwork", mock.Anything, projectID, uint(7)).
			Return(nil, false, appErr.New(appErr.CodeUpstream, "artwork not found in catalog")).Once()

		body := `{"artwork_id":7}`
		req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID.String()+"/artworks", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestLinksHandler_Update(t *testing.T) {
	projectID := uuid.New()

	t.Run("visit flips completion", func(t *testing.T) {
		svc := &mockLinkService{}
		link := &models.ProjectArtwork{ID: uuid.New(), ProjectID: projectID, Visited: true}
		project := &models.Project{ID: projectID, Name: "Moderns", IsCompleted: true}
		svc.On("UpdateLink", mock.Anything, projectID, uint(129884), mock.MatchedBy(func(in *services.UpdateLinkInput) bool {
			return in.Visited != nil && *in.Visited && in.Notes == nil
		})).Return(link, project, nil).Once()

		body := `{"visited":true}`
		req := httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String()+"/artworks/129884", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), `"is_completed":true`)
		svc.AssertExpectations(t)
	})

	t.Run("notes only leaves project out", func(t *testing.T) {
		svc := &mockLinkService{}
		link := &models.ProjectArtwork{ID: uuid.New(), ProjectID: projectID, Notes: "check loan status"}
		svc.On("UpdateLink", mock.Anything, projectID, uint(129884), mock.Anything).
			Return(link, nil, nil).Once()

		body := `{"notes":"check loan status"}`
		req := httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String()+"/artworks/129884", strings.NewReader(body))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotContains(t, rr.Body.String(), `"project"`)
	})

	t.Run("invalid external id", func(t *testing.T) {
		svc := &mockLinkService{}
		req := httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String()+"/artworks/abc", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "UpdateLink")
	})

	t.Run("link not found", func(t *testing.T) {
		svc := &mockLinkService{}
		svc.On("UpdateLink", mock.Anything, projectID, uint(5), mock.Anything).
			Return(nil, nil, appErr.New(appErr.CodeNotFound, "artwork is not linked to this project")).Once()

		req := httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String()+"/artworks/5", strings.NewReader(`{"visited":true}`))
		rr := httptest.NewRecorder()
		newLinksRouter(svc).ServeHTTP(rr, req)
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}
