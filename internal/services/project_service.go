package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/models"
	"github.com/galleryplan/engine/internal/repository"
	appErr "github.com/galleryplan/engine/pkg/errors"
	"github.com/galleryplan/engine/pkg/logger"
	"github.com/galleryplan/engine/pkg/utils"
)

// Service interface and related DTOs
type ProjectService interface {
	// CreateProject creates a project with links to the given artworks,
	// fetching unknown ones from the catalog best effort. Fetch errors are
	// informational and never fail the create.
	CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, []catalog.FetchError, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
}

type CreateProjectInput struct {
	Name        string
	Description *string
	StartDate   *time.Time
	ArtworkIDs  []uint
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	StartDate   *time.Time
}

type projectService struct {
	db          *gorm.DB
	projectRepo repository.ProjectRepository
	artworkRepo repository.ArtworkRepository
	linkRepo    repository.LinkRepository
	fetcher     catalog.Fetcher
}

func NewProjectService(db *gorm.DB, projectRepo repository.ProjectRepository, artworkRepo repository.ArtworkRepository, linkRepo repository.LinkRepository, fetcher catalog.Fetcher) ProjectService {
	return &projectService{db: db, projectRepo: projectRepo, artworkRepo: artworkRepo, linkRepo: linkRepo, fetcher: fetcher}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

func (s *projectService) CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, []catalog.FetchError, error) {
	logger.L().Info("create project called", zap.String("name", input.Name), zap.Int("artwork_ids", len(input.ArtworkIDs)))

	externalIDs := utils.DedupePreserveOrder(input.ArtworkIDs)
	if len(externalIDs) == 0 {
		return nil, nil, appErr.New(appErr.CodeInvalid, "at least one artwork id is required")
	}
	if len(externalIDs) > models.MaxArtworks {
		return nil, nil, appErr.New(appErr.CodeInvalid, "too many artwork ids").
			WithMeta("limit", models.MaxArtworks).
			WithMeta("count", len(externalIDs))
	}

	_, missing, err := s.artworkRepo.ResolveByExternalIDs(ctx, externalIDs)
	if err != nil {
		return nil, nil, err
	}

	// Catalog fetches happen before the transaction so no project lock is
	// ever held while waiting on the upstream.
	fetched, fetchErrs := catalog.FetchMissing(ctx, s.fetcher, missing)

	p := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		StartDate:   input.StartDate,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fetched) > 0 {
			artworks := make([]models.Artwork, 0, len(fetched))
			now := time.Now()
			for _, rec := range fetched {
				artworks = append(artworks, models.Artwork{
					ExternalID:     rec.ExternalID,
					Title:          rec.Title,
					LicenseText:    rec.LicenseText,
					CatalogPayload: rec.RawPayload,
					FetchedAt:      now,
				})
			}
			// A concurrent request may have stored the same external ID
			// between our resolve and here; skipping the conflict keeps the
			// upsert race-tolerant.
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoNothing: true,
			}).Create(&artworks).Error; err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "upsert artworks failed")
			}
		}

		// Re-resolve the full set: rows either pre-existed, were inserted
		// above, or were inserted by a concurrent request.
		var all []models.Artwork
		if err := tx.Where("external_id IN ?", externalIDs).Find(&all).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "resolve artworks failed")
		}
		byExternal := make(map[uint]models.Artwork, len(all))
		for _, a := range all {
			byExternal[a.ExternalID] = a
		}

		if err := tx.Create(p).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "create project failed")
		}

		// IDs that still failed to resolve are dropped silently; their fetch
		// errors already report the reason.
		var links []models.ProjectArtwork
		for _, id := range externalIDs {
			a, ok := byExternal[id]
			if !ok {
				continue
			}
			links = append(links, models.ProjectArtwork{
				ProjectID: p.ID,
				ArtworkID: a.ID,
				Position:  len(links),
			})
		}
		if len(links) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "create links failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var created models.Project
	if err := s.projectRepo.GetWithLinks(ctx, p.ID, &created); err != nil {
		return nil, nil, err
	}

	logger.L().Info("project created",
		zap.String("project_id", created.ID.String()),
		zap.Int("links", len(created.Artworks)),
		zap.Int("fetch_errors", len(fetchErrs)),
	)
	return &created, fetchErrs, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetWithLinks(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.projectRepo.List(ctx)
}

func (s *projectService) UpdateProject(ctx context.Context, projectID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error) {
	logger.L().Info("update project", zap.String("project_id", projectID.String()))

	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}

	if updates.Name != nil {
		if *updates.Name == "" {
			return nil, appErr.New(appErr.CodeInvalid, "name must not be empty")
		}
		p.Name = *updates.Name
	}
	if updates.Description != nil {
		p.Description = updates.Description
	}
	if updates.StartDate != nil {
		p.StartDate = updates.StartDate
	}

	if err := s.projectRepo.Update(ctx, &p); err != nil {
		return nil, err
	}

	var out models.Project
	if err := s.projectRepo.GetWithLinks(ctx, projectID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *projectService) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	logger.L().Info("delete project", zap.String("project_id", projectID.String()))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.New(appErr.CodeNotFound, "project not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "get project failed")
		}

		// The lock above serializes this guard against concurrent visited
		// flag updates on the project's links.
		var visited int64
		if err := tx.Model(&models.ProjectArtwork{}).
			Where("project_id = ? AND visited = true", p.ID).
			Count(&visited).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "count visited links failed")
		}
		if visited > 0 {
			return appErr.New(appErr.CodeConflict, "project has visited artworks and cannot be deleted").
				WithMeta("visited_links", visited)
		}

		if err := tx.Delete(&models.Project{}, "id = ?", p.ID).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete project failed")
		}
		return nil
	})
}
