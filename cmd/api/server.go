package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking/internal/config"
	"parking/internal/middleware"
	"parking/internal/modules/auth"
	"parking/internal/modules/catalog"
	"parking/internal/modules/live"
	"parking/internal/modules/notification"
	"parking/internal/modules/reservation"
	"parking/internal/pkg/clock"
	jwtsvc "parking/internal/pkg/jwt"
	"parking/internal/repository"
)

// server holds the HTTP router and the components main manages directly.
type server struct {
	router       *gin.Engine
	hub          *live.Hub
	reservations *reservation.Service
}

func newServer(cfg *config.Config, db *gorm.DB, clk clock.Clock) *server {
	userRepo := repository.NewUserRepository(db)
	spotRepo := repository.NewSpotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	hub := live.NewHub()

	authService := auth.NewService(userRepo, j)
	authHandler := auth.NewHandler(authService)

	catalogService := catalog.NewService(spotRepo, userRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	notificationService := notification.NewService(notificationRepo, clk)
	notificationHandler := notification.NewHandler(notificationService)

	policy := reservation.NewPolicy(cfg.Site, cfg.ReleaseCutoff.Hour, cfg.ReleaseCutoff.Minute)
	reservationService := reservation.NewService(
		userRepo,
		spotRepo,
		reservationRepo,
		notificationService,
		hub,
		clk,
		policy,
	)
	reservationHandler := reservation.NewHandler(reservationService)

	liveHandler := live.NewHandler(hub, j)

	r := gin.New()
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	liveHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))

		staff := v1.Group("/admin")
		staff.Use(middleware.JWTAuth(j), middleware.StaffOnly())

		authHandler.RegisterProtectedRoutes(protected)
		catalogHandler.RegisterRoutes(protected, staff)
		reservationHandler.RegisterRoutes(protected, staff)
		notificationHandler.RegisterRoutes(staff)
	}

	return &server{router: r, hub: hub, reservations: reservationService}
}
