package store

import (
	"database/sql"
	"time"
)

// Swap represents one completed transformation recorded locally.
type Swap struct {
	ID        int64
	UserName  string
	UserEmail string
	ImageName string
	CreatedAt time.Time
}

// SwapRepository provides operations on the local swap ledger.
type SwapRepository struct {
	db *sql.DB
}

// Swaps returns the swap repository for this store.
func (s *Store) Swaps() *SwapRepository {
	return &SwapRepository{db: s.db}
}

// Insert appends a swap record. Empty user fields are stored as-is; the
// ledger never rejects a completed transformation.
func (r *SwapRepository) Insert(userName, userEmail, imageName string) error {
	_, err := r.db.Exec(
		`INSERT INTO swaps (user_name, user_email, image_name, created_at)
		 VALUES (?, ?, ?, ?)`,
		userName, userEmail, imageName, time.Now(),
	)
	return err
}

// List returns the most recent swaps, newest first.
func (r *SwapRepository) List(limit int) ([]*Swap, error) {
	rows, err := r.db.Query(
		`SELECT id, user_name, user_email, image_name, created_at
		 FROM swaps ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swaps []*Swap
	for rows.Next() {
		s := &Swap{}
		if err := rows.Scan(&s.ID, &s.UserName, &s.UserEmail, &s.ImageName, &s.CreatedAt); err != nil {
			return nil, err
		}
		swaps = append(swaps, s)
	}

	return swaps, rows.Err()
}

// CountSince returns the number of swaps recorded at or after the given time.
func (r *SwapRepository) CountSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM swaps WHERE created_at >= ?`,
		since,
	).Scan(&count)
	return count, err
}
