package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Store handles persistent storage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows one writer; the scheduler and API share this handle
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calculator_settings (
		id TEXT PRIMARY KEY,
		settings TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_cache (
		master_id TEXT PRIMARY KEY,
		periods TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveSettings saves or updates the settings of a calculator
func (s *Store) SaveSettings(id string, settings engine.CalculatorSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	query := `INSERT OR REPLACE INTO calculator_settings (id, settings, updated_at)
		VALUES (?, ?, ?)`

	if _, err := s.db.Exec(query, id, string(settingsJSON), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving settings %s: %w", id, err)
	}
	return nil
}

// GetSettings retrieves the settings of a calculator
func (s *Store) GetSettings(id string) (engine.CalculatorSettings, error) {
	query := `SELECT settings FROM calculator_settings WHERE id = ?`

	var settingsJSON string
	err := s.db.QueryRow(query, id).Scan(&settingsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.CalculatorSettings{}, ErrNotFound
	}
	if err != nil {
		return engine.CalculatorSettings{}, fmt.Errorf("reading settings %s: %w", id, err)
	}

	// start from defaults so fields added later keep sane values
	settings := engine.DefaultCalculatorSettings()
	if err := json.Unmarshal([]byte(settingsJSON), &settings); err != nil {
		return engine.CalculatorSettings{}, fmt.Errorf("decoding settings %s: %w", id, err)
	}

	return settings, nil
}

// DeleteSettings removes stored settings of a calculator
func (s *Store) DeleteSettings(id string) error {
	_, err := s.db.Exec(`DELETE FROM calculator_settings WHERE id = ?`, id)
	return err
}

// CachePrices stores the latest fetched batch of a master, replacing the previous one
func (s *Store) CachePrices(masterID string, fetchedAt time.Time, periods []engine.PricePeriod) error {
	periodsJSON, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("encoding periods: %w", err)
	}

	query := `INSERT OR REPLACE INTO price_cache (master_id, periods, fetched_at)
		VALUES (?, ?, ?)`

	if _, err := s.db.Exec(query, masterID, string(periodsJSON), fetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("caching prices %s: %w", masterID, err)
	}
	return nil
}

// GetCachedPrices retrieves the cached batch of a master
func (s *Store) GetCachedPrices(masterID string) ([]engine.PricePeriod, time.Time, error) {
	query := `SELECT periods, fetched_at FROM price_cache WHERE master_id = ?`

	var periodsJSON, fetchedAt string
	err := s.db.QueryRow(query, masterID).Scan(&periodsJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cached prices %s: %w", masterID, err)
	}

	var periods []engine.PricePeriod
	if err := json.Unmarshal([]byte(periodsJSON), &periods); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding cached prices %s: %w", masterID, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing fetched_at %q: %w", fetchedAt, err)
	}

	return periods, ts, nil
}
