package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"avl-svr/internal/pipeline"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQL is the relational fallback store: one devices row per external id,
// one telemetry row per record.
type SQL struct {
	db     *sql.DB
	driver string
}

func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("sql store: unknown driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite no admite escritores concurrentes
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

// EnsureSchema creates the two tables when they are missing. Postgres
// deployments normally own their schema; this is used for SQLite.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	var stmts []string
	if s.driver == DriverPostgres {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS devices (
				id BIGSERIAL PRIMARY KEY,
				external_id TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS telemetry (
				id BIGSERIAL PRIMARY KEY,
				device_id BIGINT NOT NULL REFERENCES devices(id),
				ts TIMESTAMPTZ NOT NULL,
				data JSONB NOT NULL
			)`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS devices (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				external_id TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS telemetry (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				device_id INTEGER NOT NULL REFERENCES devices(id),
				ts TIMESTAMP NOT NULL,
				data TEXT NOT NULL
			)`,
		}
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StoreBatch writes the whole batch in one transaction.
func (s *SQL) StoreBatch(ctx context.Context, b pipeline.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deviceID, err := s.resolveDevice(ctx, tx, b.ExternalID)
	if err != nil {
		return err
	}

	insert := s.rebind(`INSERT INTO telemetry (device_id, ts, data) VALUES (?, ?, ?)`)
	if s.driver == DriverPostgres {
		insert = `INSERT INTO telemetry (device_id, ts, data) VALUES ($1, $2, $3::jsonb)`
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare telemetry insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range b.Records {
		data, err := json.Marshal(pipeline.Telemetry(rec))
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, deviceID, rec.Time(), string(data)); err != nil {
			return fmt.Errorf("insert telemetry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQL) resolveDevice(ctx context.Context, tx *sql.Tx, externalID string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO devices (external_id, name) VALUES (?, ?) ON CONFLICT (external_id) DO NOTHING`),
		externalID, "Teltonika "+externalID)
	if err != nil {
		return 0, fmt.Errorf("upsert device %s: %w", externalID, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM devices WHERE external_id = ?`), externalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select device %s: %w", externalID, err)
	}
	return id, nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQL) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
