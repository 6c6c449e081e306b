// Package store persists the private channel index and the archive of
// finished matches.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"burstbot/internal/blackjack"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var ErrResultNotFound = errors.New("RESULT_NOT_FOUND: no archived result for match")

//go:embed migrations/*.sql
var migrations embed.FS

// ChannelRecord is a private channel that belongs to a live match.
type ChannelRecord struct {
	ChannelID string
	MatchID   string
	PlayerID  uint64
	CreatedAt time.Time
}

// MatchResult is an archived ending result.
type MatchResult struct {
	MatchID      string
	WinnerID     uint64
	WinnerName   string
	TotalRewards int
	Result       blackjack.EndingResult
	FinishedAt   time.Time
}

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects with driver and applies every pending migration.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// :memory: databases live and die with their connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	dialect := "sqlite3"
	if s.driver == DriverPostgres {
		dialect = "postgres"
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for drivers that number them.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveChannel records a channel as belonging to a live match.
func (s *Store) SaveChannel(ctx context.Context, rec ChannelRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`
		INSERT INTO match_channels (channel_id, match_id, player_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id) DO UPDATE SET match_id = excluded.match_id, player_id = excluded.player_id
	`)
	if _, err := s.db.ExecContext(ctx, query, rec.ChannelID, rec.MatchID, int64(rec.PlayerID), rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to save channel %s: %w", rec.ChannelID, err)
	}
	return nil
}

// DeleteChannel forgets a channel. Deleting an unknown channel is not an
// error.
func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	query := s.rebind(`DELETE FROM match_channels WHERE channel_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, channelID); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", channelID, err)
	}
	return nil
}

func (s *Store) ListChannels(ctx context.Context) ([]ChannelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, match_id, player_id, created_at FROM match_channels
		ORDER BY created_at, channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var out []ChannelRecord
	for rows.Next() {
		var rec ChannelRecord
		var playerID int64
		if err := rows.Scan(&rec.ChannelID, &rec.MatchID, &playerID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		rec.PlayerID = uint64(playerID)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}
	return out, nil
}

// SaveResult archives the ending result of a match.
func (s *Store) SaveResult(ctx context.Context, matchID string, result *blackjack.EndingResult) error {
	if result == nil || result.Winner == nil {
		return fmt.Errorf("result for match %s has no winner", matchID)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	query := s.rebind(`
		INSERT INTO match_results (match_id, winner_id, winner_name, total_rewards, result_data, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO UPDATE SET
			winner_id = excluded.winner_id,
			winner_name = excluded.winner_name,
			total_rewards = excluded.total_rewards,
			result_data = excluded.result_data,
			finished_at = excluded.finished_at
	`)
	_, err = s.db.ExecContext(ctx, query,
		matchID,
		int64(result.Winner.PlayerID),
		result.Winner.PlayerName,
		result.TotalRewards,
		string(data),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", matchID, err)
	}
	return nil
}

func (s *Store) LoadResult(ctx context.Context, matchID string) (*MatchResult, error) {
	query := s.rebind(`
		SELECT winner_id, winner_name, total_rewards, result_data, finished_at
		FROM match_results WHERE match_id = ?
	`)

	out := MatchResult{MatchID: matchID}
	var winnerID int64
	var data string
	err := s.db.QueryRowContext(ctx, query, matchID).Scan(&winnerID, &out.WinnerName, &out.TotalRewards, &data, &out.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", matchID, err)
	}
	out.WinnerID = uint64(winnerID)

	if err := json.Unmarshal([]byte(data), &out.Result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result %s: %w", matchID, err)
	}
	return &out, nil
}
