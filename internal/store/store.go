// Package store implements the engine's persistence layer over SQLite,
// using the pure-Go modernc.org/sqlite driver so the binary stays
// cgo-free. Schema is created idempotently at Open time, matching the
// CREATE TABLE IF NOT EXISTS + JSON-blob-column pattern used throughout
// the reference strategy store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xfactor-labs/tradeforge/internal/compliance"
	"github.com/xfactor-labs/tradeforge/internal/domain"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer, avoid SQLITE_BUSY under concurrent bot writes

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bot_configs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TRIGGER IF NOT EXISTS update_bot_configs_updated_at
			AFTER UPDATE ON bot_configs
			BEGIN
				UPDATE bot_configs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
			END`,
		`CREATE TABLE IF NOT EXISTS compliance_snapshots (
			broker TEXT NOT NULL,
			account_id TEXT NOT NULL,
			account_type TEXT NOT NULL,
			snapshot TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (broker, account_id, account_type)
		)`,
		`CREATE TABLE IF NOT EXISTS optimizer_adjustments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_id TEXT NOT NULL,
			parameter_name TEXT NOT NULL,
			old_value REAL NOT NULL,
			new_value REAL NOT NULL,
			adjustment_type TEXT NOT NULL,
			reason TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_optimizer_adjustments_bot_id ON optimizer_adjustments(bot_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveBotConfig upserts a bot's config as a JSON blob, keyed by id.
func (s *Store) SaveBotConfig(id string, cfg domain.BotConfig) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO bot_configs (id, name, config) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, config = excluded.config, updated_at = CURRENT_TIMESTAMP
	`, id, cfg.Name, string(blob))
	return err
}

func (s *Store) LoadBotConfig(id string) (domain.BotConfig, error) {
	var blob string
	err := s.db.QueryRow(`SELECT config FROM bot_configs WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return domain.BotConfig{}, err
	}
	var cfg domain.BotConfig
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return domain.BotConfig{}, err
	}
	return cfg, nil
}

func (s *Store) DeleteBotConfig(id string) error {
	_, err := s.db.Exec(`DELETE FROM bot_configs WHERE id = ?`, id)
	return err
}

func (s *Store) ListBotConfigIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM bot_configs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveComplianceSnapshot persists a compliance.Snapshot as JSON, keyed
// by its account scope, matching the §6.4 round-trip requirement.
func (s *Store) SaveComplianceSnapshot(snap compliance.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO compliance_snapshots (broker, account_id, account_type, snapshot) VALUES (?, ?, ?, ?)
		ON CONFLICT(broker, account_id, account_type) DO UPDATE SET snapshot = excluded.snapshot, updated_at = CURRENT_TIMESTAMP
	`, snap.Scope.Broker, snap.Scope.AccountID, string(snap.Scope.AccountType), string(blob))
	return err
}

func (s *Store) LoadComplianceSnapshot(scope domain.AccountScope) (compliance.Snapshot, error) {
	var blob string
	err := s.db.QueryRow(`
		SELECT snapshot FROM compliance_snapshots WHERE broker = ? AND account_id = ? AND account_type = ?
	`, scope.Broker, scope.AccountID, string(scope.AccountType)).Scan(&blob)
	if err != nil {
		return compliance.Snapshot{}, err
	}
	var snap compliance.Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return compliance.Snapshot{}, err
	}
	return snap, nil
}

// RecordAdjustment appends one optimizer adjustment to the durable log,
// independent of the in-memory bounded ring the optimizer keeps.
func (s *Store) RecordAdjustment(botID string, adj domain.ParameterAdjustment) error {
	_, err := s.db.Exec(`
		INSERT INTO optimizer_adjustments (bot_id, parameter_name, old_value, new_value, adjustment_type, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, botID, adj.ParameterName, adj.OldValue, adj.NewValue, string(adj.AdjustmentType), adj.Reason, adj.Timestamp)
	return err
}

func (s *Store) AdjustmentsSince(botID string, since time.Time) ([]domain.ParameterAdjustment, error) {
	rows, err := s.db.Query(`
		SELECT parameter_name, old_value, new_value, adjustment_type, reason, created_at
		FROM optimizer_adjustments WHERE bot_id = ? AND created_at >= ? ORDER BY created_at
	`, botID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ParameterAdjustment
	for rows.Next() {
		var adj domain.ParameterAdjustment
		var kind string
		if err := rows.Scan(&adj.ParameterName, &adj.OldValue, &adj.NewValue, &kind, &adj.Reason, &adj.Timestamp); err != nil {
			return nil, err
		}
		adj.AdjustmentType = domain.AdjustmentType(kind)
		out = append(out, adj)
	}
	return out, rows.Err()
}
