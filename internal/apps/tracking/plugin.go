package tracking

import (
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/gamification"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/uploads"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TrackingPlugin struct {
	cache cache.Cache
	files uploads.Store
}

func New(c cache.Cache, files uploads.Store) *TrackingPlugin {
	return &TrackingPlugin{cache: c, files: files}
}

func (p *TrackingPlugin) ID() string { return "tracking" }

func (p *TrackingPlugin) Models() []interface{} {
	return []interface{}{
		&Course{},
		&CourseCompound{},
		&Injection{},
		&BloodTest{},
		&ProgressPhoto{},
	}
}

func (p *TrackingPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewService(db, gamification.NewService(db, p.cache), p.cache, cfg.StatsCacheTTL)
	handler := NewTrackingHandler(svc, p.files, cfg.UploadMaxBytes)

	router.Get("/dashboard/stats", handler.GetStats)
	router.Get("/dashboard/activity", handler.GetActivity)

	router.Get("/courses", handler.ListCourses)
	router.Post("/courses", handler.CreateCourse)
	router.Get("/courses/:id", handler.GetCourse)
	router.Patch("/courses/:id", handler.UpdateCourse)
	router.Delete("/courses/:id", handler.DeleteCourse)
	router.Get("/courses/:id/compounds", handler.ListCompounds)
	router.Post("/courses/:id/compounds", handler.CreateCompound)

	router.Get("/injections", handler.ListInjections)
	router.Post("/injections", handler.CreateInjection)
	router.Get("/blood-tests", handler.ListBloodTests)
	router.Post("/blood-tests", handler.CreateBloodTest)
	router.Get("/progress-photos", handler.ListProgressPhotos)
	router.Post("/progress-photos", handler.CreateProgressPhoto)
}
