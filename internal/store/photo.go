package store

import (
	"database/sql"
	"errors"
	"time"
)

// Photo is a stored photo reference.
type Photo struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Path      string    `json:"path"`
	TakenAt   time.Time `json:"taken_at"`
}

// PhotoRepository provides read access to stored photos.
type PhotoRepository struct {
	db *sql.DB
}

// Photos returns the photo repository for this store.
func (s *Store) Photos() *PhotoRepository {
	return &PhotoRepository{db: s.db}
}

// ListBySession returns a session's photos in sequence order.
func (r *PhotoRepository) ListBySession(sessionID string) ([]Photo, error) {
	rows, err := r.db.Query(
		`SELECT session_id, seq, path, taken_at FROM photos WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.SessionID, &p.Seq, &p.Path, &p.TakenAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// Get returns one photo.
func (r *PhotoRepository) Get(sessionID string, seq int) (*Photo, error) {
	p := &Photo{}
	err := r.db.QueryRow(
		`SELECT session_id, seq, path, taken_at FROM photos WHERE session_id = ? AND seq = ?`,
		sessionID, seq,
	).Scan(&p.SessionID, &p.Seq, &p.Path, &p.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
