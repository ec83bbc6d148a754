package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/domain"
	"bountyline/internal/repo"
)

// ResolveSpaceAndConfig picks the active space and ensures a space + config
// exist in DB, seeding defaults if missing. It prefers overrides, then the
// single-space DB. If the space does not exist, it is created on the fly.
func ResolveSpaceAndConfig(ctx context.Context, spaceOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	spaceID := spaceOverride
	if spaceID == "" {
		if s, err := r.SingleSpace(ctx); err == nil {
			spaceID = s.ID
		} else {
			return "", nil, fmt.Errorf("space not specified; use --space")
		}
	}
	seedCfg := config.Default(spaceID)

	if _, err := r.GetSpace(ctx, spaceID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createSpace(ctx, r, spaceID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetSpaceConfig(ctx, spaceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertSpaceConfig(ctx, spaceID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed space config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Space.ID = spaceID
	return spaceID, cfg, nil
}

// createSpace inserts a minimal space footprint using the seed config.
func createSpace(ctx context.Context, r repo.Repo, spaceID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(spaceID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	s := domain.Space{
		ID:        spaceID,
		Name:      spaceID,
		Status:    "active",
		CreatedAt: now,
	}
	if err := r.InsertSpace(ctx, tx, s); err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	if err := r.UpsertSpaceConfigTx(ctx, tx, spaceID, seedCfg); err != nil {
		return fmt.Errorf("insert space config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
