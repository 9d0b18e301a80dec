package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/contentstore/internal/config"
	"github.com/alfredjeanlab/contentstore/internal/store"
	"github.com/alfredjeanlab/contentstore/internal/store/memory"
	"github.com/alfredjeanlab/contentstore/internal/store/postgres"
	"github.com/alfredjeanlab/contentstore/internal/store/sqlite"
	cssync "github.com/alfredjeanlab/contentstore/internal/sync"
)

// openStore opens the backend selected by cfg.Backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.BackendSQLite:
		return sqlite.New(ctx, cfg.SQLitePath)
	case config.BackendMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

const (
	targetS3  = "s3"
	targetGit = "git"
)

// syncTarget builds the named sync destination from cfg.
func syncTarget(ctx context.Context, cfg *config.Config, name string) (cssync.Destination, error) {
	switch name {
	case targetS3:
		if cfg.SyncS3Bucket == "" {
			return nil, fmt.Errorf("CSTORE_SYNC_S3_BUCKET is not set")
		}
		return cssync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
	case targetGit:
		if cfg.SyncGitRepo == "" {
			return nil, fmt.Errorf("CSTORE_SYNC_GIT_REPO is not set")
		}
		return cssync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch), nil
	}
	return nil, fmt.Errorf("unknown sync target %q (must be s3 or git)", name)
}

// syncDestinations returns every destination cfg enables. A destination
// that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []cssync.Destination {
	var dests []cssync.Destination
	for name, enabled := range map[string]bool{
		targetS3:  cfg.SyncS3Bucket != "",
		targetGit: cfg.SyncGitRepo != "",
	} {
		if !enabled {
			continue
		}
		d, err := syncTarget(ctx, cfg, name)
		if err != nil {
			logger.Error("failed to create sync destination", "target", name, "err", err)
			continue
		}
		dests = append(dests, d)
		logger.Info("sync destination enabled", "target", d)
	}
	return dests
}
