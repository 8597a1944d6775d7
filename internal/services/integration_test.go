//go:build integration

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/galleryplan/engine/internal/catalog"
	"github.com/galleryplan/engine/internal/models"
	"github.com/galleryplan/engine/internal/repository"
	appErr "github.com/galleryplan/engine/pkg/errors"
	"github.com/galleryplan/engine/pkg/logger"
)

// fakeFetcher serves canned catalog records and records which IDs were asked
// for. IDs listed in missing answer with a 404 StatusError.
type fakeFetcher struct {
	mu      sync.Mutex
	missing map[uint]bool
	calls   []uint
}

func (f *fakeFetcher) Fetch(ctx context.Context, externalID uint) (*catalog.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, externalID)
	missing := f.missing[externalID]
	f.mu.Unlock()

	if missing {
		return nil, &catalog.StatusError{ExternalID: externalID, StatusCode: 404}
	}
	return &catalog.Record{
		ExternalID:  externalID,
		Title:       fmt.Sprintf("Artwork %d", externalID),
		LicenseText: "CC0",
		RawPayload:  []byte(fmt.Sprintf(`{"data":{"title":"Artwork %d"}}`, externalID)),
	}, nil
}

type ServicesIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
	fetcher   *fakeFetcher
	projects  ProjectService
	links     LinkService
}

func (s *ServicesIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	_, err := logger.Init("error", "console")
	s.Require().NoError(err)

	container, err := tcpostgres.Run(s.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test_db"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := gorm.Open(gormpg.Open(connStr), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(db.AutoMigrate(&models.Artwork{}, &models.Project{}, &models.ProjectArtwork{}))
}

func (s *ServicesIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *ServicesIntegrationSuite) SetupTest() {
	s.Require().NoError(s.db.Exec("DELETE FROM project_artworks").Error)
	s.Require().NoError(s.db.Exec("DELETE FROM projects").Error)
	s.Require().NoError(s.db.Exec("DELETE FROM artworks").Error)

	s.fetcher = &fakeFetcher{missing: map[uint]bool{}}
	projectRepo := repository.NewProjectRepository(s.db)
	artworkRepo := repository.NewArtworkRepository(s.db)
	linkRepo := repository.NewLinkRepository(s.db)
	s.projects = NewProjectService(s.db, projectRepo, artworkRepo, linkRepo, s.fetcher)
	s.links = NewLinkService(s.db, projectRepo, artworkRepo, linkRepo, s.fetcher, nil, 0)
}

func TestServicesIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ServicesIntegrationSuite))
}

func (s *ServicesIntegrationSuite) createProject(ids ...uint) *models.Project {
	p, fetchErrs, err := s.projects.CreateProject(s.ctx, &CreateProjectInput{
		Name:       "Test Project",
		ArtworkIDs: ids,
	})
	s.Require().NoError(err)
	s.Require().Empty(fetchErrs)
	return p
}

func (s *ServicesIntegrationSuite) TestCreateProject_DedupesAndKeepsOrder() {
	p, fetchErrs, err := s.projects.CreateProject(s.ctx, &CreateProjectInput{
		Name:       "Impressionists",
		ArtworkIDs: []uint{129884, 4, 4, 999},
	})
	s.NoError(err)
	s.Empty(fetchErrs)
	s.Require().Len(p.Artworks, 3)
	s.Equal(uint(129884), p.Artworks[0].Artwork.ExternalID)
	s.Equal(uint(4), p.Artworks[1].Artwork.ExternalID)
	s.Equal(uint(999), p.Artworks[2].Artwork.ExternalID)
	s.False(p.IsCompleted)
}

func (s *ServicesIntegrationSuite) TestCreateProject_PartialFetchFailure() {
	s.fetcher.missing[999] = true

	p, fetchErrs, err := s.projects.CreateProject(s.ctx, &CreateProjectInput{
		Name:       "Partial",
		ArtworkIDs: []uint{129884, 999},
	})
	s.NoError(err)
	s.Require().Len(fetchErrs, 1)
	s.Equal(uint(999), fetchErrs[0].ExternalID)
	s.Equal(404, fetchErrs[0].StatusCode)

	// The failed ID is simply absent; the project is created regardless.
	s.Require().Len(p.Artworks, 1)
	s.Equal(uint(129884), p.Artworks[0].Artwork.ExternalID)
}

func (s *ServicesIntegrationSuite) TestCreateProject_ReusesStoredArtworks() {
	s.createProject(42)
	s.Require().Len(s.fetcher.calls, 1)

	s.createProject(42)
	// Second create resolves locally without hitting the catalog.
	s.Len(s.fetcher.calls, 1)

	var count int64
	s.NoError(s.db.Model(&models.Artwork{}).Where("external_id = ?", 42).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *ServicesIntegrationSuite) TestCreateProject_TooManyIDs() {
	ids := make([]uint, models.MaxArtworks+1)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	_, _, err := s.projects.CreateProject(s.ctx, &CreateProjectInput{Name: "Big", ArtworkIDs: ids})
	s.True(appErr.IsCode(err, appErr.CodeInvalid))
}

func (s *ServicesIntegrationSuite) TestAddArtwork_Idempotent() {
	p := s.createProject(10)

	out, created, err := s.links.AddArtwork(s.ctx, p.ID, 20)
	s.NoError(err)
	s.True(created)
	s.Len(out.Artworks, 2)

	out, created, err = s.links.AddArtwork(s.ctx, p.ID, 20)
	s.NoError(err)
	s.False(created)
	s.Len(out.Artworks, 2)
}

func (s *ServicesIntegrationSuite) TestAddArtwork_CatalogMiss() {
	p := s.createProject(10)
	s.fetcher.missing[404404] = true

	_, _, err := s.links.AddArtwork(s.ctx, p.ID, 404404)
	s.True(appErr.IsCode(err, appErr.CodeUpstream))

	out, err := s.projects.GetProject(s.ctx, p.ID)
	s.NoError(err)
	s.Len(out.Artworks, 1)
}

func (s *ServicesIntegrationSuite) TestAddArtwork_ConcurrentCapacityCap() {
	p := s.createProject(1)

	// 15 concurrent adds of distinct artworks against a project that already
	// holds one link. Exactly MaxArtworks-1 may succeed.
	const attempts = 15
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.links.AddArtwork(s.ctx, p.ID, uint(100+i))
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	capped := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case appErr.IsCode(err, appErr.CodeCapacityExceeded):
			capped++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(models.MaxArtworks-1, succeeded)
	s.Equal(attempts-(models.MaxArtworks-1), capped)

	var count int64
	s.NoError(s.db.Model(&models.ProjectArtwork{}).Where("project_id = ?", p.ID).Count(&count).Error)
	s.Equal(int64(models.MaxArtworks), count)
}

func (s *ServicesIntegrationSuite) TestAddArtwork_UncompletesProject() {
	p := s.createProject(1)
	visited := true
	_, project, err := s.links.UpdateLink(s.ctx, p.ID, 1, &UpdateLinkInput{Visited: &visited})
	s.Require().NoError(err)
	s.Require().NotNil(project)
	s.Require().True(project.IsCompleted)

	out, created, err := s.links.AddArtwork(s.ctx, p.ID, 2)
	s.NoError(err)
	s.True(created)
	s.False(out.IsCompleted)
}

func (s *ServicesIntegrationSuite) TestUpdateLink_CompletionFlips() {
	ids := make([]uint, models.MaxArtworks)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	p := s.createProject(ids...)
	s.False(p.IsCompleted)

	visited := true
	for i := 0; i < models.MaxArtworks-1; i++ {
		_, project, err := s.links.UpdateLink(s.ctx, p.ID, ids[i], &UpdateLinkInput{Visited: &visited})
		s.Require().NoError(err)
		s.Require().NotNil(project)
		s.False(project.IsCompleted)
	}

	// Visiting the last link completes the project.
	_, project, err := s.links.UpdateLink(s.ctx, p.ID, ids[models.MaxArtworks-1], &UpdateLinkInput{Visited: &visited})
	s.NoError(err)
	s.Require().NotNil(project)
	s.True(project.IsCompleted)

	// Unvisiting any link uncompletes it again.
	unvisited := false
	_, project, err = s.links.UpdateLink(s.ctx, p.ID, ids[3], &UpdateLinkInput{Visited: &unvisited})
	s.NoError(err)
	s.Require().NotNil(project)
	s.False(project.IsCompleted)
}

func (s *ServicesIntegrationSuite) TestUpdateLink_NotesOnlySkipsResync() {
	p := s.createProject(7)

	notes := "ground floor, gallery 201"
	link, project, err := s.links.UpdateLink(s.ctx, p.ID, 7, &UpdateLinkInput{Notes: &notes})
	s.NoError(err)
	s.Nil(project)
	s.Equal(notes, link.Notes)
	s.False(link.Visited)
}

func (s *ServicesIntegrationSuite) TestUpdateLink_SameVisitedValueSkipsResync() {
	p := s.createProject(7)

	unvisited := false
	_, project, err := s.links.UpdateLink(s.ctx, p.ID, 7, &UpdateLinkInput{Visited: &unvisited})
	s.NoError(err)
	s.Nil(project)
}

func (s *ServicesIntegrationSuite) TestUpdateLink_UnknownArtwork() {
	p := s.createProject(7)

	visited := true
	_, _, err := s.links.UpdateLink(s.ctx, p.ID, 555, &UpdateLinkInput{Visited: &visited})
	s.True(appErr.IsCode(err, appErr.CodeNotFound))
}

func (s *ServicesIntegrationSuite) TestDeleteProject_GuardsVisitedLinks() {
	p := s.createProject(1, 2)

	visited := true
	_, _, err := s.links.UpdateLink(s.ctx, p.ID, 1, &UpdateLinkInput{Visited: &visited})
	s.Require().NoError(err)

	err = s.projects.DeleteProject(s.ctx, p.ID)
	s.True(appErr.IsCode(err, appErr.CodeConflict))

	_, err = s.projects.GetProject(s.ctx, p.ID)
	s.NoError(err)
}

func (s *ServicesIntegrationSuite) TestDeleteProject_CascadesLinks() {
	p := s.createProject(1, 2)

	s.NoError(s.projects.DeleteProject(s.ctx, p.ID))

	_, err := s.projects.GetProject(s.ctx, p.ID)
	s.True(appErr.IsCode(err, appErr.CodeNotFound))

	var links int64
	s.NoError(s.db.Model(&models.ProjectArtwork{}).Where("project_id = ?", p.ID).Count(&links).Error)
	s.Equal(int64(0), links)

	// Artwork rows outlive the projects that referenced them.
	var artworks int64
	s.NoError(s.db.Model(&models.Artwork{}).Count(&artworks).Error)
	s.Equal(int64(2), artworks)
}

func (s *ServicesIntegrationSuite) TestDeleteProject_NotFound() {
	err := s.projects.DeleteProject(s.ctx, uuid.New())
	s.True(appErr.IsCode(err, appErr.CodeNotFound))
}

func (s *ServicesIntegrationSuite) TestConcurrentVisits_CompletionStaysConsistent() {
	ids := make([]uint, models.MaxArtworks)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	p := s.createProject(ids...)

	// Visit every link concurrently. Whatever the interleaving, the final
	// state has all links visited and the project completed.
	visited := true
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _, err := s.links.UpdateLink(s.ctx, p.ID, id, &UpdateLinkInput{Visited: &visited})
			s.NoError(err)
		}(id)
	}
	wg.Wait()

	out, err := s.projects.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(out.IsCompleted)
	for _, link := range out.Artworks {
		s.True(link.Visited)
	}
}

func (s *ServicesIntegrationSuite) TestListLinks_OrderedByPosition() {
	p := s.createProject(30, 10, 20)
	_, _, err := s.links.AddArtwork(s.ctx, p.ID, 5)
	s.Require().NoError(err)

	links, err := s.links.ListLinks(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(links, 4)
	s.Equal(uint(30), links[0].Artwork.ExternalID)
	s.Equal(uint(10), links[1].Artwork.ExternalID)
	s.Equal(uint(20), links[2].Artwork.ExternalID)
	s.Equal(uint(5), links[3].Artwork.ExternalID)
}
