package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/config"
)

func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the checkpoint store's schema",
		Long: `Apply the checkpoint store's schema for the configured backend.

The "memory" backend needs no migration. The "file" backend only needs its
base directory to exist. The "postgres" and "sqlite" backends run the
checkpoint table DDL against checkpoint.dsn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runMigrate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch cfg.Checkpoint.Backend {
	case "", "memory":
		fmt.Println("memory backend: nothing to migrate")
		return nil
	case "file":
		if err := os.MkdirAll(cfg.Checkpoint.Directory, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
		fmt.Printf("file backend: ensured %s exists\n", cfg.Checkpoint.Directory)
		return nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Checkpoint.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if _, err := db.Exec(checkpoint.Schema); err != nil {
			return fmt.Errorf("apply checkpoint schema: %w", err)
		}
		fmt.Println("postgres backend: checkpoint schema applied")
		return nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Checkpoint.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		if _, err := db.Exec(sqliteCheckpointSchema); err != nil {
			return fmt.Errorf("apply checkpoint schema: %w", err)
		}
		fmt.Println("sqlite backend: checkpoint schema applied")
		return nil
	default:
		return fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}

// sqliteCheckpointSchema mirrors checkpoint.Schema with "?" placeholders,
// which is what a sqlite-backed checkpoint.Store would need if one is added
// alongside the Postgres-only SQLStore.
const sqliteCheckpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	node_name  TEXT,
	snapshot   BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`
