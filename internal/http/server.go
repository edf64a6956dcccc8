package httpapi

import (
	"context"
	"net/http"
	"time"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/logger"
	"brightsteps-backend-go/internal/models"
	"brightsteps-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
)

type lessonGenerator interface {
	Generate(ctx context.Context, req services.GenerateRequest) (services.GenerateResult, error)
}

type lessonBuilder interface {
	Build(ctx context.Context, req services.BuilderRequest) (map[string]any, error)
}

type assetScanner interface {
	Scan(ctx context.Context, mode string) (services.ScanResult, error)
}

type imageGenerator interface {
	Generate(ctx context.Context, assetID string) (services.GeneratedImage, error)
}

type integrationChecker interface {
	Check(ctx context.Context, mode string) (services.IntegrationsReport, error)
}

type contentSyncer interface {
	SyncEdition(ctx context.Context, editionID string, wrapper []byte) (services.SyncResult, error)
}

type assetJobLister interface {
	ListAssetJobs(ctx context.Context, status string, limit int) ([]models.LessonAssetJob, error)
	EditionAssetJobs(ctx context.Context, editionID string) ([]models.LessonAssetJob, error)
}

type editionDeleter interface {
	DeleteEdition(ctx context.Context, editionID string) (bool, error)
}

type Server struct {
	DB     *sqlx.DB
	Config config.Config
	Tokens services.TokenService
	Events *services.EventHub
	Log    *logger.Logger

	Generator    lessonGenerator
	Builder      lessonBuilder
	Scanner      assetScanner
	Images       imageGenerator
	Integrations integrationChecker
	Syncer       contentSyncer
	AssetJobs    assetJobLister
	Editions     editionDeleter
	Curriculum   services.Curriculum
	Now          func() time.Time
}

func NewServer(db *sqlx.DB, cfg config.Config, hub *services.EventHub, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	catalog, err := services.LoadSystemCatalog()
	if err != nil {
		return nil, err
	}
	curriculum, err := services.LoadCurriculum()
	if err != nil {
		return nil, err
	}
	assetStore := services.NewPostgresAssetStore(db)
	lessonStore := services.NewPostgresLessonStore(db)
	writer := services.NewLessonWriter(lessonStore)

	return &Server{
		DB:           db,
		Config:       cfg,
		Tokens:       services.NewTokenService(cfg.Auth),
		Events:       hub,
		Log:          log,
		Generator:    services.NewLessonGenerator(cfg, writer, hub, log),
		Builder:      services.NewLessonBuilder(cfg.LLM, log),
		Scanner:      services.NewAssetScanner(assetStore, catalog, cfg.AssetScanBatchSize, hub, log),
		Images:       services.NewImageGenerator(cfg.ImageGen, assetStore, cfg.MediaStoragePath, hub, log),
		Integrations: services.NewIntegrationChecker(cfg, db),
		Syncer:       services.NewContentSyncer(cfg.GitHub, log),
		AssetJobs:    assetStore,
		Editions:     lessonStore,
		Curriculum:   curriculum,
		Now:          time.Now,
	}, nil
}

func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.Log))
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", s.Login)
		api.Post("/auth/refresh", s.Refresh)
		api.Post("/auth/logout", s.Logout)

		api.Route("/admin", func(admin chi.Router) {
			// Called by the scheduler with the shared secret, not a staff JWT.
			admin.Post("/scan-assets", s.ScanAssets)

			admin.Group(func(staff chi.Router) {
				staff.Use(WithAuth(s.Tokens))
				staff.Use(RequireAnyRole(staffRoles...))
				staff.Post("/generate-lesson", s.GenerateLesson)
				staff.Post("/lesson-builder", s.BuildLesson)
				staff.Route("/lessons", func(lessons chi.Router) {
					lessons.Get("/", s.AdminListLessons)
					lessons.Get("/{editionId}", s.AdminLessonDetail)
					lessons.Delete("/{editionId}", s.AdminDeleteLesson)
					lessons.Post("/{editionId}/sync", s.SyncLesson)
				})
				staff.Put("/content-items/{contentId}", s.UpdateContentItem)
				staff.Get("/asset-jobs", s.ListAssetJobs)
				staff.Post("/assets/{assetId}/generate", s.GenerateAssetImage)
			})

			admin.Group(func(owner chi.Router) {
				owner.Use(WithAuth(s.Tokens))
				owner.Use(RequireRole(services.RoleAdmin))
				owner.Get("/integrations", s.IntegrationsStatus)
				owner.Get("/export/lessons.csv", s.ExportLessonsCSV)
				owner.Route("/users", func(users chi.Router) {
					users.Get("/", s.ListUsers)
					users.Post("/", s.CreateUser)
					users.Put("/{userId}/roles", s.SetUserRoles)
					users.Put("/{userId}/status", s.SetUserStatus)
				})
			})
		})

		api.Route("/public", func(pub chi.Router) {
			pub.Get("/lessons", s.PublicLessons)
			pub.Get("/lessons/{editionId}", s.PublicLessonDetail)
		})

		api.Get("/media/generated/{assetId}", s.GeneratedMedia)
	})

	r.Get("/ws/events", s.EventsSocket)
	return r
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
