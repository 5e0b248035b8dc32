package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding the results of live rooms
type DB struct {
	conn *sql.DB
}

// ResultRow is one recorded match of a room
type ResultRow struct {
	ID       int64             `json:"id"`
	RoomID   string            `json:"roomId"`
	Round    int               `json:"round"`
	WinnerID string            `json:"winner,omitempty"`
	Draw     bool              `json:"draw"`
	Duration float64           `json:"duration"`
	EndedAt  time.Time         `json:"endedAt"`
	Players  []ResultPlayerRow `json:"players"`
}

// ResultPlayerRow is one participant's line in a recorded match
type ResultPlayerRow struct {
	PlayerID string `json:"id"`
	Name     string `json:"name"`
	Bot      bool   `json:"bot"`
	Alive    bool   `json:"alive"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	Wins     int    `json:"wins"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// an in-memory database exists per connection
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		round INTEGER NOT NULL DEFAULT 0,
		winner_id TEXT NOT NULL DEFAULT '',
		draw INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		ended_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		result_id INTEGER NOT NULL REFERENCES match_results(id) ON DELETE CASCADE,
		player_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		bot INTEGER NOT NULL DEFAULT 0,
		alive INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (result_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_match_results_room ON match_results(room_id);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// insertResults writes a batch of match results in one transaction
func (db *DB) insertResults(results []MatchResult) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	resStmt, err := tx.Prepare(`INSERT INTO match_results (room_id, round, winner_id, draw, duration, ended_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer resStmt.Close()
	playerStmt, err := tx.Prepare(`INSERT INTO match_players (result_id, player_id, name, bot, alive, kills, deaths, wins) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare player insert: %w", err)
	}
	defer playerStmt.Close()

	for _, r := range results {
		res, err := resStmt.Exec(r.RoomID, r.Round, r.WinnerID, r.Draw, r.Duration, r.EndedAt.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("result id: %w", err)
		}
		for _, p := range r.Players {
			if _, err := playerStmt.Exec(id, p.ID, p.Name, p.Bot, p.Alive, p.Kills, p.Deaths, p.Wins); err != nil {
				return fmt.Errorf("insert result player: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RoomResults returns the most recent results of a room, newest first
func (db *DB) RoomResults(roomID string, limit int) ([]ResultRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, room_id, round, winner_id, draw, duration, ended_at
		FROM match_results
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	result := make([]ResultRow, 0)
	for rows.Next() {
		var r ResultRow
		var endedAt string
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Round, &r.WinnerID, &r.Draw, &r.Duration, &endedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range result {
		players, err := db.resultPlayers(result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Players = players
	}
	return result, nil
}

func (db *DB) resultPlayers(resultID int64) ([]ResultPlayerRow, error) {
	rows, err := db.conn.Query(`
		SELECT player_id, name, bot, alive, kills, deaths, wins
		FROM match_players
		WHERE result_id = ?
		ORDER BY rowid`,
		resultID,
	)
	if err != nil {
		return nil, fmt.Errorf("query result players: %w", err)
	}
	defer rows.Close()

	players := make([]ResultPlayerRow, 0, RoomCapacity)
	for rows.Next() {
		var p ResultPlayerRow
		if err := rows.Scan(&p.PlayerID, &p.Name, &p.Bot, &p.Alive, &p.Kills, &p.Deaths, &p.Wins); err != nil {
			return nil, fmt.Errorf("scan result player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// PurgeRoom deletes every result recorded for a room
func (db *DB) PurgeRoom(roomID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM match_players WHERE result_id IN (SELECT id FROM match_results WHERE room_id = ?)`, roomID); err != nil {
		return fmt.Errorf("purge room %s players: %w", roomID, err)
	}
	if _, err := tx.Exec("DELETE FROM match_results WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("purge room %s: %w", roomID, err)
	}
	return tx.Commit()
}
