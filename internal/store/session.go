package store

import (
	"database/sql"
	"time"
)

// Session is one run of the control loop.
type Session struct {
	ID         string     `json:"id"`
	Profile    string     `json:"profile"`
	Mode       string     `json:"mode"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     uint64     `json:"frames"`
	Inferences uint64     `json:"inferences"`
	Moves      uint64     `json:"moves"`
	Clicks     uint64     `json:"clicks"`
	Errors     uint64     `json:"errors"`
}

// SessionRepository records sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a new open session.
func (r *SessionRepository) Start(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, profile, mode, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Profile, sess.Mode, sess.StartedAt,
	)
	return err
}

// Record stores the running counters of an open or closed session.
func (r *SessionRepository) Record(sess *Session) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET frames = ?, inferences = ?, moves = ?, clicks = ?, errors = ? WHERE id = ?`,
		sess.Frames, sess.Inferences, sess.Moves, sess.Clicks, sess.Errors, sess.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// End stores final counters and the end time.
func (r *SessionRepository) End(sess *Session) error {
	now := time.Now()
	sess.EndedAt = &now

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, inferences = ?, moves = ?, clicks = ?, errors = ? WHERE id = ?`,
		now, sess.Frames, sess.Inferences, sess.Moves, sess.Clicks, sess.Errors, sess.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	rows, err := r.db.Query(sessionSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return sessions[0], nil
}

// Recent returns up to limit sessions, newest first.
func (r *SessionRepository) Recent(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(sessionSelect+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

const sessionSelect = `SELECT id, profile, mode, started_at, ended_at, frames, inferences, moves, clicks, errors FROM sessions`

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var ended sql.NullTime
		err := rows.Scan(&sess.ID, &sess.Profile, &sess.Mode, &sess.StartedAt, &ended,
			&sess.Frames, &sess.Inferences, &sess.Moves, &sess.Clicks, &sess.Errors)
		if err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			sess.EndedAt = &t
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

