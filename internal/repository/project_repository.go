package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/galleryplan/engine/internal/models"
	appErr "github.com/galleryplan/engine/pkg/errors"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	List(ctx context.Context) ([]models.Project, error)
	// GetWithLinks loads a project with its links in position order,
	// artworks included.
	GetWithLinks(ctx context.Context, projectID uuid.UUID, dest *models.Project) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) List(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects failed")
	}
	return out, nil
}

func (r *projectRepository) GetWithLinks(ctx context.Context, projectID uuid.UUID, dest *models.Project) error {
	err := r.db.WithContext(ctx).
		Preload("Artworks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Artworks.Artwork").
		First(dest, "id = ?", projectID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get project failed")
	}
	return nil
}
