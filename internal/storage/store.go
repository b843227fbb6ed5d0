// Package storage persists analysis sessions, per-trial event windows and
// power spectra into a SQLite database file.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gaitlab/neurogait/internal/experiment"
)

// Store handles database operations. Connections open lazily: a write
// connection with WAL journaling for inserts, a read-only connection for
// queries.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the SQLite database at dbPath. The
// schema is initialized on first write.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession records a new analysis session and returns its ID. Config
// may be a string, raw bytes or any JSON-marshalable value.
func (s *Store) CreateSession(ctx context.Context, structurePath string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, structurePath, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// Session loads one analysis session by ID.
func (s *Store) Session(ctx context.Context, id int64) (session *AnalysisSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess AnalysisSession
	if err = scanSession(stmt.QueryRowContext(ctx, id), &sess); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	return &sess, nil
}

// Sessions lists every recorded analysis session.
func (s *Store) Sessions(ctx context.Context) (sessions []*AnalysisSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess AnalysisSession
		if err = scanSession(rows, &sess); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, &sess)
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, sess *AnalysisSession) error {
	var config, freqs sql.NullString
	if err := row.Scan(&sess.ID, &sess.CreatedAt, &sess.StructurePath, &config, &freqs); err != nil {
		return err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	if freqs.Valid {
		if err := json.Unmarshal([]byte(freqs.String), &sess.Freqs); err != nil {
			return fmt.Errorf("decoding frequency axis: %w", err)
		}
	}
	return nil
}

// trialID inserts the trial if it is new and returns its row ID either way.
func trialID(ctx context.Context, tx *sql.Tx, sessionID int64, k experiment.TrialKey) (int64, error) {
	const selectTrialSQL = `
SELECT id FROM trials
WHERE session_id = ? AND date = ? AND subject = ? AND condition = ? AND run = ?`

	var id int64
	err := tx.QueryRowContext(ctx, selectTrialSQL, sessionID, k.Date, k.Subject, k.Condition, k.Run).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("selecting trial: %w", err)
	}

	result, err := tx.ExecContext(ctx, insertTrialSQL, sessionID, k.Date, k.Subject, k.Condition, k.Run)
	if err != nil {
		return 0, fmt.Errorf("inserting trial %s: %w", k, err)
	}
	return result.LastInsertId()
}

const insertEventSQL = `
INSERT INTO events (trial_id,
                    event_type,
                    start_seconds,
                    end_seconds)
VALUES (?, ?, ?, ?)`

// SaveEvents persists the events dataset of one session in a single
// transaction.
func (s *Store) SaveEvents(ctx context.Context, sessionID int64, table experiment.EventsTable) (err error) {
	if len(table) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, row := range table {
		id, tErr := trialID(ctx, tx, sessionID, row.Key)
		if tErr != nil {
			return tErr
		}
		for _, eventType := range experiment.EventTypes {
			for _, w := range row.Events[eventType] {
				if _, err = stmt.ExecContext(ctx, id, eventType, w.Start, w.End); err != nil {
					return fmt.Errorf("inserting event for trial %s: %w", row.Key, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Events loads the events dataset of one session back into tabular form.
func (s *Store) Events(ctx context.Context, sessionID int64) (table experiment.EventsTable, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying events: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	index := make(map[experiment.TrialKey]int)
	for rows.Next() {
		var k experiment.TrialKey
		var eventType string
		var w experiment.Window
		if err = rows.Scan(&k.Date, &k.Subject, &k.Condition, &k.Run, &eventType, &w.Start, &w.End); err != nil {
			err = fmt.Errorf("scanning event: %w", err)
			return
		}

		i, ok := index[k]
		if !ok {
			i = len(table)
			index[k] = i
			table = append(table, experiment.TrialEvents{Key: k, Events: experiment.NewEventMap()})
		}
		table[i].Events[eventType] = append(table[i].Events[eventType], w)
	}
	return
}

const insertSpectrumSQL = `
INSERT INTO spectra (trial_id,
                     event_type,
                     segment_index,
                     power)
VALUES (?, ?, ?, ?)`

// SaveSpectra persists the power spectra dataset and the shared frequency
// axis of one session in a single transaction. Spectra are stored as JSON
// arrays, one row per segment.
func (s *Store) SaveSpectra(ctx context.Context, sessionID int64, psds experiment.Nested[experiment.PSDMap], freqs []float64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertSpectrumSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var walkErr error
	psds.Walk(func(k experiment.TrialKey, m experiment.PSDMap) {
		if walkErr != nil {
			return
		}
		id, tErr := trialID(ctx, tx, sessionID, k)
		if tErr != nil {
			walkErr = tErr
			return
		}
		for _, eventType := range experiment.EventTypes {
			for i, spectrum := range m[eventType] {
				p, jErr := json.Marshal(spectrum)
				if jErr != nil {
					walkErr = fmt.Errorf("encoding spectrum for trial %s: %w", k, jErr)
					return
				}
				if _, walkErr = stmt.ExecContext(ctx, id, eventType, i, string(p)); walkErr != nil {
					walkErr = fmt.Errorf("inserting spectrum for trial %s: %w", k, walkErr)
					return
				}
			}
		}
	})
	if walkErr != nil {
		err = walkErr
		return
	}

	if freqs != nil {
		p, jErr := json.Marshal(freqs)
		if jErr != nil {
			return fmt.Errorf("encoding frequency axis: %w", jErr)
		}
		if _, err = tx.ExecContext(ctx, updateSessionFreqsSQL, string(p), sessionID); err != nil {
			return fmt.Errorf("updating frequency axis: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Spectra loads the power spectra dataset of one session.
func (s *Store) Spectra(ctx context.Context, sessionID int64) (psds experiment.Nested[experiment.PSDMap], err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSpectraSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying spectra: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	psds = make(experiment.Nested[experiment.PSDMap])
	for rows.Next() {
		var k experiment.TrialKey
		var eventType string
		var segment int
		var power string
		if err = rows.Scan(&k.Date, &k.Subject, &k.Condition, &k.Run, &eventType, &segment, &power); err != nil {
			err = fmt.Errorf("scanning spectrum: %w", err)
			return
		}

		var spectrum []float64
		if err = json.Unmarshal([]byte(power), &spectrum); err != nil {
			err = fmt.Errorf("decoding spectrum for trial %s: %w", k, err)
			return
		}

		m, ok := psds.Get(k)
		if !ok {
			m = make(experiment.PSDMap)
			psds.Put(k, m)
		}
		m[eventType] = append(m[eventType], spectrum)
	}
	return
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
