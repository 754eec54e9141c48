package main

import (
	"flag"
	"log"
	"os"

	"BarForge/internal/di"
	"BarForge/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s storage=%s mode=%s intervals=%v",
		cfg.Environment, cfg.Storage.Type, cfg.Pipeline.Mode, cfg.Pipeline.Intervals)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
