package main

import (
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"discord-automod-bot/internal/bot"
	"discord-automod-bot/internal/database"
	"discord-automod-bot/internal/metrics"
	"discord-automod-bot/internal/redis"
)

type Config struct {
	Token       string                  `json:"token" yaml:"token"`
	Redis       redis.Config            `json:"redis" yaml:"redis"`
	Postgres    database.PostgresConfig `json:"postgres" yaml:"postgres"`
	MetricsAddr string                  `json:"metrics_addr" yaml:"metrics_addr"`
}

// loadConfig reads config.json, falling back to config.yaml.
func loadConfig() (*Config, error) {
	var config Config

	if file, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, err
		}
		return &config, nil
	}

	file, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func main() {
	// Runtime tuning for low-latency event processing: less frequent GC,
	// bounded heap.
	runtime.GOMAXPROCS(runtime.NumCPU())
	debug.SetGCPercent(400)
	debug.SetMemoryLimit(3 << 30)

	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Error reading config: %v", err)
	}

	rdb, err := redis.New(config.Redis)
	if err != nil {
		log.Fatalf("Error initializing Redis: %v", err)
	}

	db, err := database.NewDatabase(config.Postgres)
	if err != nil {
		log.Fatalf("Error initializing Database: %v", err)
	}

	if config.MetricsAddr != "" {
		go func() {
			log.Printf("Serving metrics on %s", config.MetricsAddr)
			if err := metrics.Serve(config.MetricsAddr); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	b, err := bot.New(config.Token, db, rdb)
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}
}
