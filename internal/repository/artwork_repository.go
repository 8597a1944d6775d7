package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/galleryplan/engine/internal/models"
	appErr "github.com/galleryplan/engine/pkg/errors"
)

type ArtworkRepository interface {
	BaseRepository[models.Artwork]
	// ResolveByExternalIDs returns the artworks already stored for the given
	// external IDs plus the sub-list of IDs not found, input order preserved.
	ResolveByExternalIDs(ctx context.Context, externalIDs []uint) (map[uint]models.Artwork, []uint, error)
	GetByExternalID(ctx context.Context, externalID uint, dest *models.Artwork) error
	// SaveMetadata overwrites the catalog-sourced fields of an existing row.
	SaveMetadata(ctx context.Context, artwork *models.Artwork) error
}

type artworkRepository struct {
	BaseRepository[models.Artwork]
	db *gorm.DB
}

func NewArtworkRepository(db *gorm.DB) ArtworkRepository {
	return &artworkRepository{BaseRepository: NewBaseRepository[models.Artwork](db), db: db}
}

func (r *artworkRepository) ResolveByExternalIDs(ctx context.Context, externalIDs []uint) (map[uint]models.Artwork, []uint, error) {
	var found []models.Artwork
	if err := r.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&found).Error; err != nil {
		return nil, nil, appErr.Wrap(err, appErr.CodeInternal, "resolve artworks failed")
	}

	byExternal := make(map[uint]models.Artwork, len(found))
	for _, a := range found {
		byExternal[a.ExternalID] = a
	}

	var missing []uint
	for _, id := range externalIDs {
		if _, ok := byExternal[id]; !ok {
			missing = append(missing, id)
		}
	}
	return byExternal, missing, nil
}

func (r *artworkRepository) GetByExternalID(ctx context.Context, externalID uint, dest *models.Artwork) error {
	if err := r.db.WithContext(ctx).First(dest, "external_id = ?", externalID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "artwork not found").WithMeta("external_id", externalID)
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get artwork failed")
	}
	return nil
}

func (r *artworkRepository) SaveMetadata(ctx context.Context, artwork *models.Artwork) error {
	res := r.db.WithContext(ctx).Model(&models.Artwork{}).
		Where("external_id = ?", artwork.ExternalID).
		Updates(map[string]any{
			"title":           artwork.Title,
			"license_text":    artwork.LicenseText,
			"catalog_payload": artwork.CatalogPayload,
			"fetched_at":      artwork.FetchedAt,
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "save artwork metadata failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "artwork not found").WithMeta("external_id", artwork.ExternalID)
	}
	return nil
}
