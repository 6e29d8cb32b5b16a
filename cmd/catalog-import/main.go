package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	"github.com/noah-isme/unireg-api/internal/service"
	"github.com/noah-isme/unireg-api/pkg/config"
	"github.com/noah-isme/unireg-api/pkg/database"
	"github.com/noah-isme/unireg-api/pkg/logger"
)

func main() {
	var (
		file    string
		adminID string
		dryRun  bool
		timeout time.Duration
	)
	flag.StringVar(&file, "file", "catalog.yaml", "path to the YAML course catalog")
	flag.StringVar(&adminID, "admin", "", "id of the admin account recorded in the audit log")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate the catalog without writing")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall import timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	f, err := os.Open(file)
	if err != nil {
		logr.Fatal("failed to open catalog", zap.String("file", file), zap.Error(err))
	}
	catalog, err := service.DecodeCatalog(f)
	_ = f.Close()
	if err != nil {
		logr.Fatal("failed to parse catalog", zap.String("file", file), zap.Error(err))
	}

	validate := validator.New()
	if dryRun {
		if err := validate.Struct(catalog); err != nil {
			logr.Fatal("catalog failed validation", zap.Error(err))
		}
		fmt.Printf("catalog ok: %d courses\n", len(catalog.Courses))
		return
	}
	if adminID == "" {
		logr.Fatal("-admin is required unless -dry-run is set")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	userRepo := repository.NewUserRepository(db)
	admin, err := userRepo.FindByID(ctx, adminID)
	if err != nil {
		logr.Fatal("failed to load admin account", zap.String("admin_id", adminID), zap.Error(err))
	}

	courses := service.NewCourseService(repository.NewCourseRepository(db), userRepo, validate, logr)
	result, err := courses.ImportCatalog(ctx, models.Actor{UserID: admin.ID, Role: admin.Role}, catalog)
	if err != nil {
		logr.Fatal("catalog import failed, catalog left unchanged", zap.String("file", file), zap.Int("courses", len(catalog.Courses)), zap.Error(err))
	}
	fmt.Printf("created %d, updated %d courses\n", result.Created, result.Updated)
}
