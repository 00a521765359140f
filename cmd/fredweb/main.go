// Command fredweb serves the FRED series status API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fredcli/internal/app"
	"fredcli/internal/config"
	"fredcli/internal/infrastructure"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "listen port (default from configuration, 8090)")
	flag.Parse()

	cfg, err := loadConfig(*configFile, *port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(path string, port int) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	return cfg, nil
}
