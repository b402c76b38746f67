package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	room_code   TEXT NOT NULL,
	winner_id   TEXT NOT NULL DEFAULT '',
	winner      TEXT NOT NULL DEFAULT '',
	turns       INTEGER NOT NULL,
	difficulty  TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS matches_finished_at_idx ON matches (finished_at DESC);
CREATE TABLE IF NOT EXISTS match_players (
	match_id   TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
	seat       INTEGER NOT NULL,
	player_id  TEXT NOT NULL,
	nickname   TEXT NOT NULL,
	is_ai      BOOLEAN NOT NULL,
	stabilized INTEGER NOT NULL,
	PRIMARY KEY (match_id, seat)
);`

// DB wraps the Postgres connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDB connects to Postgres and verifies the connection.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{pool: pool, logger: logger}, nil
}

// Migrate creates the match tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Stats returns pool statistics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Pool exposes the underlying pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close releases every connection.
func (db *DB) Close() {
	db.pool.Close()
}

// PostgresMatchStore stores matches in Postgres.
type PostgresMatchStore struct {
	db *DB
}

// NewPostgresMatchStore creates a store on db.
func NewPostgresMatchStore(db *DB) *PostgresMatchStore {
	return &PostgresMatchStore{db: db}
}

// SaveMatch inserts the match and its seats in one transaction.
func (s *PostgresMatchStore) SaveMatch(ctx context.Context, m Match) error {
	if err := m.validate(); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO matches (id, room_code, winner_id, winner, turns, difficulty, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, m.RoomCode, m.WinnerID, m.Winner, m.Turns, m.Difficulty, m.StartedAt, m.FinishedAt)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range m.Players {
			batch.Queue(
				`INSERT INTO match_players (match_id, seat, player_id, nickname, is_ai, stabilized)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				m.ID, p.Seat, p.PlayerID, p.Nickname, p.IsAI, p.Stabilized)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert match players: %w", err)
		}
		s.db.logger.Debug("match saved", zap.String("match_id", m.ID), zap.String("room_code", m.RoomCode))
		return nil
	})
}

// RecentMatches returns up to limit matches, newest first.
func (s *PostgresMatchStore) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.pool.Query(ctx,
		`SELECT id, room_code, winner_id, winner, turns, difficulty, started_at, finished_at
		 FROM matches ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.ID, &m.RoomCode, &m.WinnerID, &m.Winner, &m.Turns, &m.Difficulty, &m.StartedAt, &m.FinishedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan matches: %w", err)
	}
	if len(matches) == 0 {
		return matches, nil
	}

	index := make(map[string]int, len(matches))
	ids := make([]string, len(matches))
	for i, m := range matches {
		index[m.ID] = i
		ids[i] = m.ID
	}
	prow, err := s.db.pool.Query(ctx,
		`SELECT match_id, seat, player_id, nickname, is_ai, stabilized
		 FROM match_players WHERE match_id = ANY($1) ORDER BY match_id, seat`, ids)
	if err != nil {
		return nil, fmt.Errorf("query match players: %w", err)
	}
	defer prow.Close()
	for prow.Next() {
		var matchID string
		var p MatchPlayer
		if err := prow.Scan(&matchID, &p.Seat, &p.PlayerID, &p.Nickname, &p.IsAI, &p.Stabilized); err != nil {
			return nil, fmt.Errorf("scan match player: %w", err)
		}
		if i, ok := index[matchID]; ok {
			matches[i].Players = append(matches[i].Players, p)
		}
	}
	return matches, prow.Err()
}
