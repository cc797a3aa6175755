// Package profilestore persists inline-cache snapshots in a SQL database.
// The sqlite driver is pure Go; duckdb is available for analytical use of
// the stored profiles.
package profilestore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/baseline/snapshot"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("baseline.profilestore")

// ErrSnapshotNotFound indicates the requested snapshot doesn't exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Drivers lists the accepted database/sql driver names.
var Drivers = []string{"sqlite", "duckdb"}

// Entry is the summary row of a stored snapshot.
type Entry struct {
	ID       string
	EngineID string
	Label    string
	TakenAt  time.Time
	Sites    int
}

// Store handles snapshot storage.
type Store struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
}

// Open opens (creating if needed) a profile store.
func Open(driver, dsn string) (*Store, error) {
	if !validDriver(driver) {
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite" {
		// Set busy timeout for concurrent access
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		engine_id TEXT NOT NULL,
		label TEXT NOT NULL,
		taken_at BIGINT NOT NULL,
		sites INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s store %s", driver, dsn)
	return &Store{db: db, driver: driver}, nil
}

func validDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a snapshot, replacing any row with the same id.
func (s *Store) Save(snap *snapshot.Snapshot) error {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (id, engine_id, label, taken_at, sites, data) VALUES (?, ?, ?, ?, ?, ?)",
		snap.ID, snap.EngineID, snap.Label, snap.TakenAt, snap.NumSites(), data,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	log.Infof("saved snapshot %s (%d sites)", snap.ID, snap.NumSites())
	return nil
}

// Load retrieves a snapshot by id.
func (s *Store) Load(id string) (*snapshot.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return snapshot.Unmarshal(data)
}

// List returns stored snapshots, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT id, engine_id, label, taken_at, sites FROM snapshots ORDER BY taken_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var taken int64
		if err := rows.Scan(&e.ID, &e.EngineID, &e.Label, &taken, &e.Sites); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.TakenAt = time.Unix(0, taken)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a snapshot.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
