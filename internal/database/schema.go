package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"qaforum/internal/config"
	"qaforum/internal/middleware"
	"qaforum/internal/models"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do for a config.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	MissingIndexes     []string
}

// integrityIndex is a unique index the forum depends on for correctness:
// vote upserts and duplicate-report detection rely on the database
// rejecting the second row.
type integrityIndex struct {
	model any
	name  string
}

var integrityIndexes = []integrityIndex{
	{&models.User{}, "idx_users_username"},
	{&models.User{}, "idx_users_email"},
	{&models.Tag{}, "idx_tags_name"},
	{&models.Vote{}, "idx_votes_user_question"},
	{&models.Vote{}, "idx_votes_user_answer"},
	{&models.Report{}, "idx_reports_user_question"},
	{&models.Report{}, "idx_reports_user_answer"},
}

func missingIntegrityIndexes(db *gorm.DB) []string {
	m := db.Migrator()
	var missing []string
	for _, idx := range integrityIndexes {
		if !m.HasIndex(idx.model, idx.name) {
			missing = append(missing, idx.name)
		}
	}
	return missing
}

// verifyIntegrityIndexes fails when a schema change left the forum without
// one of its unique indexes.
func verifyIntegrityIndexes(db *gorm.DB) error {
	if missing := missingIntegrityIndexes(db); len(missing) > 0 {
		return fmt.Errorf("schema is missing unique indexes: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func normalizedSchemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// schemaPolicy decides which of the SQL migrations and GORM AutoMigrate run.
// Hybrid runs SQL everywhere and AutoMigrate only outside prod-like envs.
// Auto in a prod-like env must be explicitly allowed.
func schemaPolicy(cfg *config.Config) (runSQL, runAuto bool, err error) {
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode := normalizedSchemaMode(cfg); mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

func runAutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database schema up to date per DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		mode := normalizedSchemaMode(cfg)
		if mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", mode), slog.String("env", cfg.Env))
		if err := runAutoMigrate(db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return verifyIntegrityIndexes(db.WithContext(ctx))
}

// GetSchemaStatus reports the schema plan and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               normalizedSchemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
		MissingIndexes:     missingIntegrityIndexes(db.WithContext(ctx)),
	}
	if !runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
