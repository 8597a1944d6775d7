package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/models"
	"github.com/galleryplan/engine/internal/repository"
	appErr "github.com/galleryplan/engine/pkg/errors"
	"github.com/galleryplan/engine/pkg/logger"
)

// RefreshPayload is the task payload for catalog refresh tasks.
type RefreshPayload struct {
	ExternalID uint `json:"external_id"`
}

// RefreshTaskHandler re-fetches artwork metadata from the catalog and
// overwrites the stored copy. This is the only path that rewrites an artwork
// row after its first insert.
type RefreshTaskHandler struct {
	fetcher     catalog.Fetcher
	artworkRepo repository.ArtworkRepository
}

func NewRefreshTaskHandler(fetcher catalog.Fetcher, artworkRepo repository.ArtworkRepository) *RefreshTaskHandler {
	return &RefreshTaskHandler{fetcher: fetcher, artworkRepo: artworkRepo}
}

func (h *RefreshTaskHandler) HandleRefresh(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid refresh task payload", zap.Error(err))
		return err
	}

	logger.L().Info("handling artwork refresh", zap.Uint("external_id", p.ExternalID))

	rec, err := h.fetcher.Fetch(ctx, p.ExternalID)
	if err != nil {
		var se *catalog.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			// Gone from the catalog; keep the cached copy and stop retrying.
			logger.L().Warn("artwork no longer in catalog", zap.Uint("external_id", p.ExternalID))
			return nil
		}
		logger.L().Error("refresh fetch failed", zap.Uint("external_id", p.ExternalID), zap.Error(err))
		return err
	}

	art := &models.Artwork{
		ExternalID:     rec.ExternalID,
		Title:          rec.Title,
		LicenseText:    rec.LicenseText,
		CatalogPayload: rec.RawPayload,
		FetchedAt:      time.Now(),
	}
	if err := h.artworkRepo.SaveMetadata(ctx, art); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			// Row disappeared between enqueue and handling; nothing to do.
			return nil
		}
		logger.L().Error("save refreshed metadata failed", zap.Uint("external_id", p.ExternalID), zap.Error(err))
		return err
	}

	logger.L().Info("artwork refreshed", zap.Uint("external_id", p.ExternalID))
	return nil
}
