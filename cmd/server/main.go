// Command server exposes single-document invoice extraction over HTTP.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"fapiao/internal/config"
	"fapiao/internal/handler"
	"fapiao/internal/pipeline"
	"fapiao/internal/port"
	"fapiao/internal/raster"
	"fapiao/internal/recognize"
	"fapiao/internal/router"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	orch := pipeline.New(
		raster.New(),
		recognize.New(),
		pipeline.Config{
			Concurrency:       cfg.Pipeline.Concurrency,
			MaxImagesInFlight: cfg.Pipeline.MaxImagesInFlight,
			DocTimeout:        cfg.Pipeline.DocTimeout(),
			Raster: port.RenderOptions{
				Scale: cfg.Raster.Scale,
				Alpha: cfg.Raster.Alpha,
			},
			Recognize: port.RecognizeOptions{
				Languages:      cfg.OCR.Languages,
				UseAccelerator: cfg.OCR.UseAccelerator,
				BatchSize:      cfg.OCR.BatchSize,
			},
		},
	)

	extractH := handler.NewExtractHandler(orch, cfg.Server.MaxUploadMB)
	healthH := handler.NewHealthHandler()

	r := router.Setup(extractH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
