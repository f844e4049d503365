package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Swaps table - local record of every completed transformation.
		// Kept even when the durable ledger is reachable so the kiosk has a
		// complete history through network outages.
		`CREATE TABLE IF NOT EXISTS swaps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL,
			user_email TEXT NOT NULL,
			image_name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_swaps_created_at ON swaps(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
