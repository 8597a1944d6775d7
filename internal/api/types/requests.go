package types

type ProjectCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	ArtworkIDs  []uint  `json:"artwork_ids" validate:"required,min=1,max=10,dive,gte=1"`
}

type ProjectUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

type AddArtworkRequest struct {
	ArtworkID uint `json:"artwork_id" validate:"required,gte=1"`
}

type LinkUpdateRequest struct {
	Notes   *string `json:"notes"`
	Visited *bool   `json:"visited"`
}
