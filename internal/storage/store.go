// Package storage persists profiles and progress in SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the SQLite repository of profiles and progress.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger.With().Str("component", "storage").Logger()}

	if err := s.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Migrate applies the embedded migrations that have not run yet. It is
// safe to call repeatedly.
func (s *Store) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		schema, err := migrationFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := s.runMigration(ctx, name, string(schema)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		s.logger.Debug().Str("migration", name).Msg("migration applied")
	}
	return nil
}

func (s *Store) runMigration(ctx context.Context, name, schema string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitSQL(schema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement %d: %w\nSQL: %s", i+1, err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// splitSQL splits a migration into statements. Migrations hold no
// semicolons inside literals or trigger bodies.
func splitSQL(schema string) []string {
	var b strings.Builder
	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Health checks the connection.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn().Err(err).Msg("WAL checkpoint failed")
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveProfile inserts or updates p.
func (s *Store) SaveProfile(ctx context.Context, p profile.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO profiles (id, name, avatar_color, role, joined_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		avatar_color = excluded.avatar_color,
		role = excluded.role`,
		p.ID, p.Name, p.AvatarColor, string(p.Role), p.JoinedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return profile.ErrNameTaken
		}
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile with id.
func (s *Store) GetProfile(ctx context.Context, id string) (profile.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_color, role, joined_at FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.UserProfile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	return p, err
}

// ListProfiles returns the non-guest profiles, oldest first.
func (s *Store) ListProfiles(ctx context.Context) ([]profile.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, avatar_color, role, joined_at FROM profiles
	WHERE role != 'guest'
	ORDER BY joined_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes the profile and its progress.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return tx.Commit()
}

// LoadProgress returns the stored progress of userID. A missing record
// gives the defaults. An unreadable one is logged and also gives the
// defaults.
func (s *Store) LoadProgress(ctx context.Context, userID string) (game.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM progress WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return game.NewState(), nil
	}
	if err != nil {
		return game.State{}, fmt.Errorf("load progress: %w", err)
	}

	st, err := game.Decode([]byte(data))
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Msg("corrupt progress record ignored")
		return game.NewState(), nil
	}
	return st, nil
}

// SaveProgress stores st for userID.
func (s *Store) SaveProgress(ctx context.Context, userID string, st game.State) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO progress (user_id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (profile.UserProfile, error) {
	var p profile.UserProfile
	var role, joined string
	if err := row.Scan(&p.ID, &p.Name, &p.AvatarColor, &role, &joined); err != nil {
		return profile.UserProfile{}, err
	}
	p.Role = profile.Role(role)
	t, err := time.Parse(time.RFC3339Nano, joined)
	if err != nil {
		return profile.UserProfile{}, fmt.Errorf("parse joined_at: %w", err)
	}
	p.JoinedAt = t
	return p, nil
}
