package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

			CREATE TABLE IF NOT EXISTS user_credentials (
				user_id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				email VARCHAR(255) NOT NULL,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				password_hash VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT user_credentials_email_key UNIQUE (email)
			);

			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY REFERENCES user_credentials(user_id) ON DELETE CASCADE,
				email VARCHAR(255) NOT NULL,
				username VARCHAR(30) NOT NULL,
				is_admin BOOLEAN NOT NULL DEFAULT false,
				wallet BIGINT NOT NULL DEFAULT 1000,
				email_verified BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT users_username_key UNIQUE (username)
			);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
			DROP TABLE IF EXISTS user_credentials;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS stream_configs (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				title VARCHAR(255) NOT NULL,
				platform VARCHAR(50) NOT NULL DEFAULT 'youtube',
				video_ref VARCHAR(11) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				is_live BOOLEAN NOT NULL DEFAULT false,
				viewer_count BIGINT NOT NULL DEFAULT 0,
				thumbnail_url TEXT NOT NULL DEFAULT '',
				status_checked_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_stream_configs_created_at ON stream_configs(created_at DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS stream_configs_single_active ON stream_configs ((true)) WHERE is_active;
		`,
		Down: `
			DROP TABLE IF EXISTS stream_configs;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS quizzes (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				question TEXT NOT NULL,
				options JSONB NOT NULL,
				correct_option_id VARCHAR(64) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				time_limit INT NOT NULL DEFAULT 30,
				activated_at TIMESTAMPTZ,
				created_by UUID REFERENCES users(id) ON DELETE SET NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_quizzes_created_at ON quizzes(created_at DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS quizzes_single_active ON quizzes ((true)) WHERE is_active;

			CREATE TABLE IF NOT EXISTS quiz_answers (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				quiz_id UUID NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				username VARCHAR(30) NOT NULL,
				selected_option_id VARCHAR(64) NOT NULL,
				bet_amount BIGINT NOT NULL CHECK (bet_amount > 0),
				is_correct BOOLEAN,
				points_won BIGINT,
				submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT quiz_answers_quiz_user_key UNIQUE (quiz_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_quiz_answers_quiz ON quiz_answers(quiz_id, submitted_at DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS quiz_answers;
			DROP TABLE IF EXISTS quizzes;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS chat_messages (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				username VARCHAR(30) NOT NULL,
				message VARCHAR(500) NOT NULL,
				stream_id UUID REFERENCES stream_configs(id) ON DELETE SET NULL,
				is_deleted BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at DESC) WHERE NOT is_deleted;
			CREATE INDEX IF NOT EXISTS idx_chat_messages_stream ON chat_messages(stream_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id);
		`,
		Down: `
			DROP TABLE IF EXISTS chat_messages;
		`,
	},
	{
		Version: 5,
		Up: `
			CREATE TABLE IF NOT EXISTS chat_moderation_actions (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				username VARCHAR(30) NOT NULL,
				action_type VARCHAR(20) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				duration_minutes INT,
				moderator_id UUID,
				moderator_username VARCHAR(30) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMPTZ
			);

			CREATE INDEX IF NOT EXISTS idx_chat_moderation_actions_user ON chat_moderation_actions(user_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS user_moderation_status (
				user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				username VARCHAR(30) NOT NULL DEFAULT '',
				is_muted BOOLEAN NOT NULL DEFAULT false,
				is_banned BOOLEAN NOT NULL DEFAULT false,
				mute_expires_at TIMESTAMPTZ,
				last_message_at TIMESTAMPTZ,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_user_moderation_status_mutes ON user_moderation_status(mute_expires_at) WHERE is_muted;

			CREATE TABLE IF NOT EXISTS chat_settings (
				id VARCHAR(32) PRIMARY KEY,
				slow_mode BOOLEAN NOT NULL DEFAULT false,
				slow_mode_delay INT NOT NULL DEFAULT 10,
				banned_keywords TEXT[] NOT NULL DEFAULT '{}',
				auto_delete_keywords TEXT[] NOT NULL DEFAULT '{}',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS chat_settings;
			DROP TABLE IF EXISTS user_moderation_status;
			DROP TABLE IF EXISTS chat_moderation_actions;
		`,
	},
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

// RunMigrations runs all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range sortedMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		log.WithField("version", migration.Version).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// RollbackLast reverts the most recently applied migration
func RollbackLast(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		return nil
	}

	var target *Migration
	for _, m := range Migrations {
		if m.Version == currentVersion {
			m := m
			target = &m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no migration registered for version %d", currentVersion)
	}

	log.WithField("version", target.Version).Info("rolling back migration")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, target.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to roll back migration %d: %w", target.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", target.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to unrecord migration %d: %w", target.Version, err)
	}
	return tx.Commit()
}

// AppliedMigration is one row of schema_migrations
type AppliedMigration struct {
	Version   int
	AppliedAt time.Time
}

func AppliedMigrations(ctx context.Context, db *sql.DB) ([]AppliedMigration, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// CurrentVersion returns the highest applied migration version, or 0
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
