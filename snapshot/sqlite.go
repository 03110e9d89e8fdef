package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/steamfetch/models"
)

//go:embed schema.sql
var schema string

// SQLiteMirror keeps a queryable copy of the latest bundle. Each write replaces
// games and details and appends one row to releases.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens (or creates) the database at path. ":memory:" works for tests.
func OpenSQLiteMirror(ctx context.Context, path string) (*SQLiteMirror, error) {
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; an in-memory database is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

// WriteBundle replaces the mirrored rows in one transaction.
func (m *SQLiteMirror) WriteBundle(ctx context.Context, b *Bundle) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from games`); err != nil {
		return fmt.Errorf("clear games: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `delete from details`); err != nil {
		return fmt.Errorf("clear details: %w", err)
	}

	gameStmt, err := tx.PrepareContext(ctx, `insert into games (steam_id, name, developer, publisher, price, owners, page, payload) values (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare games insert: %w", err)
	}
	defer gameStmt.Close()
	for _, g := range b.Summaries {
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode game %s: %w", g.SteamID, err)
		}
		if _, err := gameStmt.ExecContext(ctx, g.SteamID, g.Name, g.Developer, g.Publisher, g.Price, g.Owners, g.Page, string(payload)); err != nil {
			return fmt.Errorf("insert game %s: %w", g.SteamID, err)
		}
	}

	detailStmt, err := tx.PrepareContext(ctx, `insert into details (steam_id, name, is_free, final_price, currency, payload) values (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare details insert: %w", err)
	}
	defer detailStmt.Close()
	for _, d := range b.Details {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode detail %s: %w", d.SteamID, err)
		}
		var finalPrice sql.NullFloat64
		var currency sql.NullString
		if d.Price != nil {
			finalPrice = sql.NullFloat64{Float64: d.Price.Final, Valid: true}
			currency = sql.NullString{String: d.Price.Currency, Valid: true}
		}
		if _, err := detailStmt.ExecContext(ctx, d.SteamID, d.Name, d.IsFree, finalPrice, currency, string(payload)); err != nil {
			return fmt.Errorf("insert detail %s: %w", d.SteamID, err)
		}
	}

	meta, err := json.Marshal(b.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`insert or replace into releases (release_id, written_at, mode, total_games, total_details, payload) values (?, ?, ?, ?, ?, ?)`,
		b.Metadata.ReleaseID, b.Metadata.LastUpdated.UTC().Format(time.RFC3339), b.Metadata.Mode,
		b.Metadata.TotalGames, b.Metadata.TotalDetails, string(meta),
	); err != nil {
		return fmt.Errorf("insert release: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	slog.Debug("sqlite mirror updated", slog.String("release", b.Metadata.ReleaseID))
	return nil
}

// Details returns the mirrored details ordered by steam id.
func (m *SQLiteMirror) Details(ctx context.Context) ([]models.GameDetail, error) {
	rows, err := m.db.QueryContext(ctx, `select payload from details order by cast(steam_id as integer)`)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	var out []models.GameDetail
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		var d models.GameDetail
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Counts reports the mirrored games, details and releases.
func (m *SQLiteMirror) Counts(ctx context.Context) (games, details, releases int, err error) {
	row := m.db.QueryRowContext(ctx, `select (select count(*) from games), (select count(*) from details), (select count(*) from releases)`)
	if err := row.Scan(&games, &details, &releases); err != nil {
		return 0, 0, 0, fmt.Errorf("count rows: %w", err)
	}
	return games, details, releases, nil
}

// Close closes the database.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
