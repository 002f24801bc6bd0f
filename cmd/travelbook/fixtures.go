package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/money"
)

type resourceFixture struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	BasePriceMinor int64  `json:"base_price_minor"`
	Currency       string `json:"currency"`
	Capacity       int    `json:"capacity"`
	Inactive       bool   `json:"inactive"`
}

func loadResourceFixtures(ctx context.Context, repo domainresources.Repository, path, currency string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("resource fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("resource fixtures file empty", "path", path)
		return nil
	}

	var fixtures []resourceFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		price, err := money.New(fx.BasePriceMinor, cur)
		if err != nil {
			logger.Error("fixture invalid", "resource_id", fx.ID, "error", err)
			continue
		}
		resource, err := domainresources.NewResource(domainresources.CreateParams{
			ID:        domainresources.ResourceID(fx.ID),
			Kind:      domainresources.Kind(fx.Kind),
			Name:      fx.Name,
			BasePrice: price,
			Capacity:  fx.Capacity,
		})
		if err != nil {
			logger.Error("fixture invalid", "resource_id", fx.ID, "error", err)
			continue
		}
		resource.Active = !fx.Inactive
		if err := repo.Save(ctx, resource); err != nil {
			logger.Error("cannot store fixture resource", "resource_id", fx.ID, "error", err)
			continue
		}
		logger.Info("resource fixture imported", "resource_id", resource.ID, "kind", resource.Kind)
	}
	return nil
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "resources.json"),
		filepath.Join("..", "..", "data", "resources.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
