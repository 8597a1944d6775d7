package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a curated set of up to MaxArtworks artworks to visit.
// IsCompleted is derived: true iff the project has at least one link and
// none of them is unvisited. It is recomputed transactionally whenever a
// link's visited flag changes, never written directly by handlers.
type Project struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	StartDate   *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	IsCompleted bool       `gorm:"not null;default:false" json:"is_completed"`

	Artworks []ProjectArtwork `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"artworks,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxArtworks caps the number of links a project may hold at any time.
const MaxArtworks = 10
