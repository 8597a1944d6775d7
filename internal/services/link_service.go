package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/models"
	"github.com/galleryplan/engine/internal/repository"
	appErr "github.com/galleryplan/engine/pkg/errors"
	"github.com/galleryplan/engine/pkg/logger"
)

// LinkService owns the project-artwork links: adding an artwork to a project
// under the capacity and uniqueness invariants, and updating a link's notes
// and visited flag with the completion resync that may follow.
type LinkService interface {
	// AddArtwork links one artwork to the project, fetching it from the
	// catalog when unknown locally. The returned bool reports whether a new
	// link was created; false means the link already existed.
	AddArtwork(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.Project, bool, error)
	// UpdateLink applies the provided fields to the link. When the visited
	// flag actually changed the project completion is resynced in the same
	// transaction and the resynced project is returned; otherwise the
	// project return is nil.
	UpdateLink(ctx context.Context, projectID uuid.UUID, externalID uint, updates *UpdateLinkInput) (*models.ProjectArtwork, *models.Project, error)
	ListLinks(ctx context.Context, projectID uuid.UUID) ([]models.ProjectArtwork, error)
	GetLink(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.ProjectArtwork, error)
}

type UpdateLinkInput struct {
	Notes   *string
	Visited *bool
}

type linkService struct {
	db          *gorm.DB
	projectRepo repository.ProjectRepository
	artworkRepo repository.ArtworkRepository
	linkRepo    repository.LinkRepository
	fetcher     catalog.Fetcher
	asynqClient *asynq.Client
	refreshTTL  time.Duration
}

func NewLinkService(db *gorm.DB, projectRepo repository.ProjectRepository, artworkRepo repository.ArtworkRepository, linkRepo repository.LinkRepository, fetcher catalog.Fetcher, client *asynq.Client, refreshTTL time.Duration) LinkService {
	return &linkService{
		db:          db,
		projectRepo: projectRepo,
		artworkRepo: artworkRepo,
		linkRepo:    linkRepo,
		fetcher:     fetcher,
		asynqClient: client,
		refreshTTL:  refreshTTL,
	}
}

var _ LinkService = (*linkService)(nil)

func (s *linkService) AddArtwork(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.Project, bool, error) {
	logger.L().Info("add artwork to project",
		zap.String("project_id", projectID.String()),
		zap.Uint("external_id", externalID),
	)

	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, false, err
	}

	// Resolve or fetch the artwork before the locking transaction; the
	// upstream is never awaited while a project lock is held.
	art, err := s.resolveOrFetch(ctx, externalID)
	if err != nil {
		return nil, false, err
	}

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "project not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "lock project failed")
		}

		// The project row lock serializes concurrent link mutations, so the
		// existence and capacity checks below stay valid through the insert.
		var existing int64
		if err := tx.Model(&models.ProjectArtwork{}).
			Where("project_id = ? AND artwork_id = ?", locked.ID, art.ID).
			Count(&existing).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "check existing link failed")
		}
		if existing > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&models.ProjectArtwork{}).
			Where("project_id = ?", locked.ID).
			Count(&count).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "count links failed")
		}
		if count >= models.MaxArtworks {
			return appErr.New(appErr.CodeCapacityExceeded, "project already holds the maximum number of artworks").
				WithMeta("limit", models.MaxArtworks).
				WithMeta("count", count).
				WithMeta("external_id", externalID)
		}

		link := models.ProjectArtwork{
			ProjectID: locked.ID,
			ArtworkID: art.ID,
			Position:  int(count),
		}
		if err := tx.Create(&link).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "create link failed")
		}
		created = true

		// A new unvisited link uncompletes a completed project.
		return syncCompletion(tx, &locked)
	})
	if err != nil {
		return nil, false, err
	}

	var out models.Project
	if err := s.projectRepo.GetWithLinks(ctx, projectID, &out); err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (s *linkService) UpdateLink(ctx context.Context, projectID uuid.UUID, externalID uint, updates *UpdateLinkInput) (*models.ProjectArtwork, *models.Project, error) {
	visitedChanged := false
	var linkID uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "project not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "lock project failed")
		}

		var art models.Artwork
		if err := tx.First(&art, "external_id = ?", externalID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "artwork not found").WithMeta("external_id", externalID)
			}
			return appErr.Wrap(err, appErr.CodeInternal, "get artwork failed")
		}

		var link models.ProjectArtwork
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&link, "project_id = ? AND artwork_id = ?", p.ID, art.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "link not found").WithMeta("external_id", externalID)
			}
			return appErr.Wrap(err, appErr.CodeInternal, "lock link failed")
		}

		if updates.Notes != nil {
			link.Notes = *updates.Notes
		}
		if updates.Visited != nil && *updates.Visited != link.Visited {
			link.Visited = *updates.Visited
			visitedChanged = true
		}
		linkID = link.ID

		if err := tx.Save(&link).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "update link failed")
		}

		if visitedChanged {
			return syncCompletion(tx, &p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var link models.ProjectArtwork
	if err := s.db.WithContext(ctx).Preload("Artwork").First(&link, "id = ?", linkID).Error; err != nil {
		return nil, nil, appErr.Wrap(err, appErr.CodeInternal, "reload link failed")
	}

	if !visitedChanged {
		return &link, nil, nil
	}
	var p models.Project
	if err := s.projectRepo.GetWithLinks(ctx, projectID, &p); err != nil {
		return nil, nil, err
	}
	return &link, &p, nil
}

func (s *linkService) ListLinks(ctx context.Context, projectID uuid.UUID) ([]models.ProjectArtwork, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return s.linkRepo.ListByProject(ctx, projectID)
}

func (s *linkService) GetLink(ctx context.Context, projectID uuid.UUID, externalID uint) (*models.ProjectArtwork, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	var link models.ProjectArtwork
	if err := s.linkRepo.GetByExternalID(ctx, projectID, externalID, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// resolveOrFetch returns the locally stored artwork for the external ID, or
// fetches and stores it when unknown. A fetch failure is fatal here, unlike
// the best-effort batch path in CreateProject.
func (s *linkService) resolveOrFetch(ctx context.Context, externalID uint) (*models.Artwork, error) {
	var art models.Artwork
	err := s.artworkRepo.GetByExternalID(ctx, externalID, &art)
	if err == nil {
		if s.refreshTTL > 0 && time.Since(art.FetchedAt) > s.refreshTTL {
			s.enqueueRefresh(ctx, externalID)
		}
		return &art, nil
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	rec, err := s.fetcher.Fetch(ctx, externalID)
	if err != nil {
		var se *catalog.StatusError
		if errors.As(err, &se) {
			return nil, appErr.Wrap(err, appErr.CodeUpstream, "artwork not found in catalog").
				WithMeta("external_id", externalID).
				WithMeta("status_code", se.StatusCode)
		}
		return nil, appErr.Wrap(err, appErr.CodeUpstream, "catalog fetch failed").
			WithMeta("external_id", externalID)
	}

	fresh := models.Artwork{
		ExternalID:     rec.ExternalID,
		Title:          rec.Title,
		LicenseText:    rec.LicenseText,
		CatalogPayload: rec.RawPayload,
		FetchedAt:      time.Now(),
	}
	// Ignore the conflict when a concurrent request stored the same ID
	// between our lookup and here.
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "store artwork failed")
	}

	if err := s.artworkRepo.GetByExternalID(ctx, externalID, &art); err != nil {
		return nil, err
	}
	return &art, nil
}

func (s *linkService) enqueueRefresh(ctx context.Context, externalID uint) {
	if s.asynqClient == nil {
		return
	}
	payload, _ := json.Marshal(map[string]uint{"external_id": externalID})
	task := asynq.NewTask("catalog:refresh", payload)
	if _, err := s.asynqClient.EnqueueContext(ctx, task); err != nil {
		// Refresh is best effort; the request proceeds with stale metadata.
		logger.L().Warn("enqueue artwork refresh failed",
			zap.Uint("external_id", externalID),
			zap.Error(err),
		)
	}
}
