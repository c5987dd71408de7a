package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"demand/internal/config"
	"demand/pkg/oxylabs"

	"github.com/rs/zerolog/log"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: category <config_path> <asin>")
		fmt.Println("Example: category config/config.json B07FZ8S74R")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.Logging)

	client := oxylabs.New(cfg.Oxylabs.Username, cfg.Oxylabs.Password, cfg.Oxylabs.BaseURL, cfg.Oxylabs.Domain, cfg.Oxylabs.RequestsPerMinute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	category, err := client.GetCategoryFromASIN(ctx, os.Args[2])
	if errors.Is(err, oxylabs.ErrNoCategory) {
		fmt.Println("No category found for", os.Args[2])
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Category lookup failed")
	}

	fmt.Println("Category:", category.Name)
	fmt.Println("Browse node:", category.ID)
	fmt.Println("URL:", category.URL)
}
