package main

import (
	"gorm.io/gorm"

	"github.com/galleryplan/engine/internal/models"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		&models.Artwork{},
		&models.Project{},
		&models.ProjectArtwork{},
	}
}

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	if err := enableUUIDExtension(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}

	// Run custom migrations
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addLinkCascade,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// enableUUIDExtension ensures UUID generation is available
func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addLinkCascade makes sure deleting a project removes its link rows even on
// databases migrated before the constraint carried ON DELETE CASCADE.
func addLinkCascade(db *gorm.DB) error {
	return db.Exec(`
		ALTER TABLE project_artworks
		DROP CONSTRAINT IF EXISTS fk_projects_artworks,
		ADD CONSTRAINT fk_projects_artworks
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	`).Error
}
