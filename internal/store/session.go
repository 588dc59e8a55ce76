package store

import (
	"database/sql"
	"errors"
	"time"
)

// SessionStatus is the lifecycle of a recorded session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionFinished  SessionStatus = "finished"
	SessionAbandoned SessionStatus = "abandoned"
)

// Session is a recorded booth session.
type Session struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	PhotoCount int           `json:"photo_count"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// SessionRepository provides access to recorded sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Ensure records an active session if id is not yet known.
func (r *SessionRepository) Ensure(id string, startedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(SessionActive), startedAt,
	)
	return err
}

// Finish marks a session finished and stores its photos in one transaction.
func (r *SessionRepository) Finish(id string, photos []Photo, finishedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO sessions (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(SessionActive), finishedAt,
	); err != nil {
		return err
	}

	for _, p := range photos {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO photos (session_id, seq, path, taken_at) VALUES (?, ?, ?, ?)`,
			id, p.Seq, p.Path, p.TakenAt,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET status = ?, photo_count = ?, finished_at = ? WHERE id = ?`,
		string(SessionFinished), len(photos), finishedAt, id,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Abandon marks an active session abandoned. Finished sessions are left alone.
func (r *SessionRepository) Abandon(id string, at time.Time) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET status = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(SessionAbandoned), at, id, string(SessionActive),
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, status, photo_count, started_at, finished_at FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, status, photo_count, started_at, finished_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes a session and its photos.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var (
		status   string
		finished sql.NullTime
	)
	if err := row.Scan(&sess.ID, &status, &sess.PhotoCount, &sess.StartedAt, &finished); err != nil {
		return nil, err
	}
	sess.Status = SessionStatus(status)
	if finished.Valid {
		t := finished.Time
		sess.FinishedAt = &t
	}
	return sess, nil
}
