package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      created_at,
                      structure_path,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	updateSessionFreqsSQL = `
UPDATE sessions SET freqs = ? WHERE id = ?`

	selectSessionSQL = `
SELECT
    id,
    created_at,
    structure_path,
    config,
    freqs
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    created_at,
    structure_path,
    config,
    freqs
FROM sessions`

	insertTrialSQL = `
INSERT INTO trials (session_id,
                    date,
                    subject,
                    condition,
                    run)
VALUES (?, ?, ?, ?, ?)`

	selectEventsSQL = `
SELECT
    t.date,
    t.subject,
    t.condition,
    t.run,
    e.event_type,
    e.start_seconds,
    e.end_seconds
FROM events e
JOIN trials t ON t.id = e.trial_id
WHERE
    t.session_id = ?
ORDER BY
    t.id, e.id`

	selectSpectraSQL = `
SELECT
    t.date,
    t.subject,
    t.condition,
    t.run,
    s.event_type,
    s.segment_index,
    s.power
FROM spectra s
JOIN trials t ON t.id = s.trial_id
WHERE
    t.session_id = ?
ORDER BY
    t.id, s.event_type, s.segment_index`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_trials_session ON trials (session_id);
CREATE INDEX IF NOT EXISTS idx_events_trial ON events (trial_id);
CREATE INDEX IF NOT EXISTS idx_spectra_trial ON spectra (trial_id, event_type);`
)

//go:embed schema.sql
var initSchemaSQL string
