package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/theaterverein/crewplan-api-go/pkg/availability"
	"github.com/theaterverein/crewplan-api-go/pkg/booking"
	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/database"
	"github.com/theaterverein/crewplan-api-go/pkg/generator"
	"github.com/theaterverein/crewplan-api-go/pkg/handlers"
	"github.com/theaterverein/crewplan-api-go/pkg/ranking"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db := database.InitDB()
	store := database.NewStore(db)

	detector := conflict.NewDetector(database.Sources(db), conflict.Options{
		FailOpen: os.Getenv("CONFLICT_FAIL_CLOSED") == "",
		Logger:   logger,
	})
	validator := availability.NewValidator(store, detector, nil)
	ranker := ranking.NewRanker(store, detector, language.German)
	coordinator := booking.NewCoordinator(store, store, logger, nil)
	gen := generator.NewGenerator(store, detector, logger, nil)

	h := &handlers.Handler{
		DB:          db,
		Store:       store,
		Validator:   validator,
		Ranker:      ranker,
		Coordinator: coordinator,
		Generator:   gen,
	}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Crewplan API",
			"version": "1.0.0",
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/shifts/:id/validate", h.ValidateRegistration)
		api.POST("/shifts/:id/book", h.Book)
		api.GET("/shifts/:id/suggestions", h.Suggestions)
		api.GET("/shifts/:id/waitlist", h.Waitlist)
		api.GET("/productions/:id/proposals", h.PreviewProposals)
		api.POST("/productions/:id/proposals", h.ConfirmProposals)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
