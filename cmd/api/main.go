package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/config"
	"github.com/pablopda/linux-speech-tools/internal/http/server"
)

func initLog(logConfig *config.LogConfig) {
	if logConfig.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(logConfig.Level)
	if err != nil {
		logrus.WithError(err).Warnf("Invalid log level %q, falling back to info", logConfig.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
}

// findConfig returns the first existing default config path, or "" to run
// on defaults and environment variables alone.
func findConfig() string {
	for _, path := range []string{
		"./configs/config.yaml",
		"../configs/config.yaml",
		"/etc/speech/config.yaml",
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if *configPath == "" {
		*configPath = findConfig()
	}
	if *configPath != "" {
		abs, err := filepath.Abs(*configPath)
		if err != nil {
			logrus.Fatalf("Cannot resolve config path: %v", err)
		}
		*configPath = abs
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Cannot load config: %v", err)
	}

	initLog(&cfg.Log)
	if *configPath != "" {
		logrus.Infof("Using config file %s", *configPath)
	} else {
		logrus.Info("No config file found, using defaults and environment")
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	if err := app.Start(); err != nil {
		logrus.Fatalf("Server error: %v", err)
	}
}
