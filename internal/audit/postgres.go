package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnectionParams holds PostgreSQL connection parameters.
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresSink stores audit records in a PostgreSQL table. Retention is
// size-bounded the same way the CSV sink is: once the table grows past
// maxRecords, older rows are pruned down to the cap.
type PostgresSink struct {
	db         *sql.DB
	maxRecords int
	inserts    int
	logger     zerolog.Logger
}

// pruneEvery controls how often the retention check runs; pruning on every
// insert would double the write load for no benefit.
const pruneEvery = 100

// NewPostgresSink connects, verifies the connection and creates the audit
// table if it does not exist. maxRecords <= 0 disables pruning.
func NewPostgresSink(params ConnectionParams, maxRecords int) (*PostgresSink, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMP NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL
		)
	`); err != nil {
		return nil, err
	}

	return &PostgresSink{
		db:         db,
		maxRecords: maxRecords,
		logger:     log.With().Str("component", "audit_postgres").Logger(),
	}, nil
}

// Record inserts one row. Insert failures are logged, never propagated: an
// unreachable audit store must not stop the trading loop.
func (s *PostgresSink) Record(severity Severity, message string) {
	_, err := s.db.Exec(`
		INSERT INTO audit_log (recorded_at, severity, message)
		VALUES ($1, $2, $3)
	`, time.Now(), string(severity), message)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit insert failed")
		return
	}

	s.inserts++
	if s.maxRecords > 0 && s.inserts%pruneEvery == 0 {
		s.prune()
	}
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

func (s *PostgresSink) prune() {
	_, err := s.db.Exec(`
		DELETE FROM audit_log
		WHERE id NOT IN (
			SELECT id FROM audit_log ORDER BY id DESC LIMIT $1
		)
	`, s.maxRecords)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit prune failed")
	}
}
