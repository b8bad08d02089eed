package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rivermonitor/internal/app"
	"rivermonitor/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file")
	uploadDir := flag.String("upload-dir", "", "Directory for stored images")
	ipv4 := flag.Bool("ipv4", false, "Bind to the IPv4 loopback address instead of IPv6")
	port := flag.Int("port", 8080, "HTTP port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	// Only flags given on the command line override the config file and env.
	overrides := config.Overrides{ConfigPath: *configPath}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "upload-dir":
			overrides.UploadDir = uploadDir
		case "ipv4":
			overrides.IPv4 = ipv4
		case "port":
			overrides.Port = port
		case "db":
			overrides.DBPath = dbPath
		}
	})

	cfg, err := config.Load(overrides)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		log.Printf("Failed to close resources: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Server stopped: %v", runErr)
	}
}
