package services

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/galleryplan/engine/internal/models"
	appErr "github.com/galleryplan/engine/pkg/errors"
	"github.com/galleryplan/engine/pkg/logger"
)

// syncCompletion recomputes the project's derived completion flag from its
// current link rows and persists it only when the value changed. The caller
// must already hold a FOR UPDATE lock on the project row within tx; the lock
// is what keeps a concurrent visited-flag change from interleaving with this
// read-and-write.
//
// A project with zero links is never completed, even though "no unvisited
// link exists" holds vacuously.
func syncCompletion(tx *gorm.DB, project *models.Project) error {
	var total int64
	if err := tx.Model(&models.ProjectArtwork{}).
		Where("project_id = ?", project.ID).
		Count(&total).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "count links failed")
	}

	var unvisited int64
	if err := tx.Model(&models.ProjectArtwork{}).
		Where("project_id = ? AND visited = false", project.ID).
		Count(&unvisited).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "count unvisited links failed")
	}

	completed := total > 0 && unvisited == 0
	if completed == project.IsCompleted {
		return nil
	}

	if err := tx.Model(&models.Project{}).
		Where("id = ?", project.ID).
		Update("is_completed", completed).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "update completion flag failed")
	}
	project.IsCompleted = completed

	logger.L().Info("project completion changed",
		zap.String("project_id", project.ID.String()),
		zap.Bool("is_completed", completed),
	)
	return nil
}
