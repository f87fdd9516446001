package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CSVSink appends timestamped records to a CSV file and mirrors them to the
// structured log. When the record count grows past maxRecords the file is
// rewritten keeping only the most recent maxRecords rows, so the trail stays
// size-bounded on long-running processes.
type CSVSink struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	writer     *csv.Writer
	maxRecords int
	count      int
	logger     zerolog.Logger
}

// NewCSVSink opens (or creates) the audit file at path. maxRecords <= 0
// disables rotation.
func NewCSVSink(path string, maxRecords int) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	s := &CSVSink{
		path:       path,
		file:       file,
		writer:     csv.NewWriter(file),
		maxRecords: maxRecords,
		logger:     log.With().Str("component", "audit_csv").Logger(),
	}
	s.count = s.countExisting()
	return s, nil
}

// Record appends one row and flushes immediately so a crash never loses the
// decision that preceded it.
func (s *CSVSink) Record(severity Severity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{time.Now().Format("2006-01-02 15:04:05"), string(severity), message}
	if err := s.writer.Write(row); err != nil {
		s.logger.Error().Err(err).Msg("audit write failed")
		return
	}
	s.writer.Flush()
	s.count++

	s.mirror(severity, message)

	if s.maxRecords > 0 && s.count > s.maxRecords {
		if err := s.rotate(); err != nil {
			s.logger.Error().Err(err).Msg("audit rotation failed")
		}
	}
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	return s.file.Close()
}

// mirror replays the record into the zerolog stream at a matching level.
func (s *CSVSink) mirror(severity Severity, message string) {
	switch severity {
	case SeverityWarning:
		s.logger.Warn().Msg(message)
	case SeverityError, SeverityCritical:
		s.logger.Error().Msg(message)
	default:
		s.logger.Info().Msg(message)
	}
}

// rotate rewrites the file keeping the last maxRecords rows.
func (s *CSVSink) rotate() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return err
	}
	rows, err := csv.NewReader(s.file).ReadAll()
	if err != nil {
		return err
	}
	if len(rows) > s.maxRecords {
		rows = rows[len(rows)-s.maxRecords:]
	}

	if err := s.file.Truncate(0); err != nil {
		return err
	}
	if _, err := s.file.Seek(0, 0); err != nil {
		return err
	}

	s.writer = csv.NewWriter(s.file)
	if err := s.writer.WriteAll(rows); err != nil {
		return err
	}
	s.writer.Flush()
	s.count = len(rows)

	s.logger.Info().Int("kept", len(rows)).Msg("audit file rotated")
	return s.writer.Error()
}

// countExisting counts rows already present so rotation accounting survives
// restarts.
func (s *CSVSink) countExisting() int {
	if _, err := s.file.Seek(0, 0); err != nil {
		return 0
	}
	rows, err := csv.NewReader(s.file).ReadAll()
	if err != nil {
		return 0
	}
	s.file.Seek(0, 2)
	return len(rows)
}
