package store

import (
	"database/sql"
	"time"
)

// Confirmation is one recorded gesture confirmation.
type Confirmation struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	HandID      int       `json:"hand_id"`
	Label       string    `json:"label"`
	State       string    `json:"state"`
	Accepted    bool      `json:"accepted"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// ConfirmationRepository records gesture confirmations.
type ConfirmationRepository struct {
	db *sql.DB
}

// Confirmations returns the confirmation repository for this store.
func (s *Store) Confirmations() *ConfirmationRepository {
	return &ConfirmationRepository{db: s.db}
}

// Record inserts c and sets its ID.
func (r *ConfirmationRepository) Record(c *Confirmation) error {
	result, err := r.db.Exec(
		`INSERT INTO confirmations (session_id, hand_id, label, state, accepted, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.HandID, c.Label, c.State, c.Accepted, c.ConfirmedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// ListBySession returns a session's confirmations oldest first.
func (r *ConfirmationRepository) ListBySession(sessionID string) ([]Confirmation, error) {
	return r.query(
		`SELECT id, session_id, hand_id, label, state, accepted, confirmed_at
		 FROM confirmations WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
}

// Recent returns the newest confirmations first.
func (r *ConfirmationRepository) Recent(limit int) ([]Confirmation, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(
		`SELECT id, session_id, hand_id, label, state, accepted, confirmed_at
		 FROM confirmations ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (r *ConfirmationRepository) query(q string, args ...any) ([]Confirmation, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Confirmation
	for rows.Next() {
		var c Confirmation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.HandID, &c.Label, &c.State, &c.Accepted, &c.ConfirmedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
