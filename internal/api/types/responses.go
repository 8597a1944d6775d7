package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// Response models are explicit per operation; handlers never serialize gorm
// models directly.

type ArtworkResponse struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  uint      `json:"external_id"`
	Title       string    `json:"title"`
	LicenseText string    `json:"license_text"`
}

type LinkResponse struct {
	Artwork ArtworkResponse `json:"artwork"`
	Notes   string          `json:"notes"`
	Visited bool            `json:"visited"`
}

type ProjectResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	StartDate   *string        `json:"start_date"`
	IsCompleted bool           `json:"is_completed"`
	Artworks    []LinkResponse `json:"artworks"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateProjectData is the create response: the project plus the per-ID
// fetch errors, present only when some catalog lookups failed.
type CreateProjectData struct {
	ProjectResponse
	FetchErrors []catalog.FetchError `json:"fetch_errors,omitempty"`
}

// AddArtworkData reports whether the add actually created a new link.
type AddArtworkData struct {
	ProjectResponse
	Created bool `json:"created"`
}

// UpdateLinkData carries the updated link and, when the visited flag
// changed, the resynced project.
type UpdateLinkData struct {
	Link    LinkResponse     `json:"link"`
	Project *ProjectResponse `json:"project,omitempty"`
}

func NewArtworkResponse(a *models.Artwork) ArtworkResponse {
	return ArtworkResponse{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		Title:       a.Title,
		LicenseText: a.LicenseText,
	}
}

func NewLinkResponse(l *models.ProjectArtwork) LinkResponse {
	return LinkResponse{
		Artwork: NewArtworkResponse(&l.Artwork),
		Notes:   l.Notes,
		Visited: l.Visited,
	}
}

func NewLinkResponses(links []models.ProjectArtwork) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for i := range links {
		out = append(out, NewLinkResponse(&links[i]))
	}
	return out
}

func NewProjectResponse(p *models.Project) ProjectResponse {
	var startDate *string
	if p.StartDate != nil {
		s := p.StartDate.Format("2006-01-02")
		startDate = &s
	}
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   startDate,
		IsCompleted: p.IsCompleted,
		Artworks:    NewLinkResponses(p.Artworks),
		CreatedAt:   p.CreatedAt,
	}
}
