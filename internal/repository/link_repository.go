package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/galleryplan/engine/internal/models"
	appErr "github.com/galleryplan/engine/pkg/errors"
)

type LinkRepository interface {
	// ListByProject returns the project's links in position order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectArtwork, error)
	GetByExternalID(ctx context.Context, projectID uuid.UUID, externalID uint, dest *models.ProjectArtwork) error
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectArtwork, error) {
	var out []models.ProjectArtwork
	err := r.db.WithContext(ctx).
		Preload("Artwork").
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list links failed")
	}
	return out, nil
}

func (r *linkRepository) GetByExternalID(ctx context.Context, projectID uuid.UUID, externalID uint, dest *models.ProjectArtwork) error {
	err := r.db.WithContext(ctx).
		Preload("Artwork").
		Joins("JOIN artworks ON artworks.id = project_artworks.artwork_id").
		Where("project_artworks.project_id = ? AND artworks.external_id = ?", projectID, externalID).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "link not found").
				WithMeta("external_id", externalID)
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get link failed")
	}
	return nil
}
