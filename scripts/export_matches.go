package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/repository"
)

var header = []string{
	"match_id", "room_code", "difficulty", "turns", "winner",
	"started_at", "finished_at", "seat", "player_id", "nickname", "is_ai", "stabilized",
}

// Exports recorded matches from Postgres as CSV, one row per seat.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	limit := flag.Int("limit", 1000, "number of most recent matches to export")
	outPath := flag.String("out", "", "output file; stdout when empty")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.NewDB(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	start := time.Now()
	matches, err := repository.NewPostgresMatchStore(db).RecentMatches(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to load matches: %v", err)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}

	rows, err := writeMatches(out, matches)
	if err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d matches (%d rows) in %s\n", len(matches), rows, time.Since(start))
}

func writeMatches(out io.Writer, matches []repository.Match) (int, error) {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return 0, err
	}
	rows := 0
	for _, m := range matches {
		for _, p := range m.Players {
			if err := w.Write([]string{
				m.ID,
				m.RoomCode,
				m.Difficulty,
				strconv.Itoa(m.Turns),
				m.Winner,
				m.StartedAt.UTC().Format(time.RFC3339),
				m.FinishedAt.UTC().Format(time.RFC3339),
				strconv.Itoa(p.Seat),
				p.PlayerID,
				p.Nickname,
				strconv.FormatBool(p.IsAI),
				strconv.Itoa(p.Stabilized),
			}); err != nil {
				return rows, err
			}
			rows++
		}
	}
	w.Flush()
	return rows, w.Error()
}
