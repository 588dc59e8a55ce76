package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per booth session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'finished', 'abandoned')),
			photo_count INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Photos handed off when a session finishes
		`CREATE TABLE IF NOT EXISTS photos (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			taken_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,

		// Every confirmed gesture, accepted by the session or not
		`CREATE TABLE IF NOT EXISTS confirmations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			hand_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			state TEXT NOT NULL,
			accepted INTEGER NOT NULL DEFAULT 0,
			confirmed_at DATETIME NOT NULL
		)`,

		// Runtime overrides for configuration, as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmations_session_id ON confirmations(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
