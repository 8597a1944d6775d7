package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectArtwork is the annotated join between one project and one artwork.
// The (project_id, artwork_id) pair is unique; Position records insertion
// order and gives the stable listing order. Rows are removed only when the
// owning project is deleted.
type ProjectArtwork struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_artwork;index:idx_project_visited,priority:1" json:"project_id"`
	ArtworkID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_artwork" json:"-"`
	Artwork   Artwork   `gorm:"foreignKey:ArtworkID" json:"artwork"`

	Notes    string `gorm:"type:text;not null;default:''" json:"notes"`
	Visited  bool   `gorm:"not null;default:false;index:idx_project_visited,priority:2" json:"visited"`
	Position int    `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
