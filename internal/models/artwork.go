package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Artwork is a museum piece known by its external catalog ID. Rows are
// created the first time any project references the ID and are only ever
// rewritten by a metadata refresh (upsert-or-skip on conflict).
type Artwork struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ExternalID     uint           `gorm:"uniqueIndex;not null" json:"external_id" validate:"required,gte=1"`
	Title          string         `gorm:"type:varchar(500);not null" json:"title"`
	LicenseText    string         `gorm:"type:text;not null;default:''" json:"license_text"`
	CatalogPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`
	FetchedAt      time.Time      `json:"fetched_at"`
	CreatedAt      time.Time      `json:"created_at"`
}
