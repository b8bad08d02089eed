package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"rivermonitor/internal/config"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/repository/sqlite"
	"rivermonitor/internal/service"
	"rivermonitor/internal/service/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file")
	uploadDir := flag.String("upload-dir", "", "Directory for stored images")
	dbPath := flag.String("db", "", "SQLite database path")
	remove := flag.Bool("delete", false, "Delete images that have no database row")
	flag.Parse()

	overrides := config.Overrides{ConfigPath: *configPath}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "upload-dir":
			overrides.UploadDir = uploadDir
		case "db":
			overrides.DBPath = dbPath
		}
	})

	cfg, err := config.Load(overrides)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Printf("Reconciling images in %s with database %s\n", cfg.Storage.UploadDir, cfg.Database.Path)

	db, err := sqlite.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewImageStore(cfg.Storage, logger.New(os.Stderr, cfg.Logging.Level))
	if err != nil {
		log.Fatalf("Failed to open image store: %v", err)
	}

	report, err := service.Reconcile(context.Background(), sqlite.NewObservationRepository(db), store, *remove)
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}

	for _, ts := range report.OrphanedImages {
		fmt.Printf("orphaned image: %s\n", storage.Filename(ts))
	}
	for _, ts := range report.MissingImages {
		fmt.Printf("missing image:  %s\n", storage.Filename(ts))
	}

	fmt.Printf("\nOrphaned images: %d\n", len(report.OrphanedImages))
	fmt.Printf("Missing images:  %d\n", len(report.MissingImages))
	if *remove {
		fmt.Printf("Removed:         %d\n", report.Removed)
	} else if len(report.OrphanedImages) > 0 {
		fmt.Println("Run with --delete to remove orphaned images")
	}
}
