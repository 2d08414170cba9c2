package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Profile is a named set of tuning overrides.
type Profile struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Settings  json.RawMessage `json:"settings"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProfileRepository provides CRUD operations for profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// Create inserts a new profile. Empty settings are stored as "{}".
func (r *ProfileRepository) Create(p *Profile) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if len(p.Settings) == 0 {
		p.Settings = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO profiles (id, name, settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Settings), p.CreatedAt, p.UpdatedAt,
	)
	return uniqueErr(err)
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	return r.get(`SELECT id, name, settings, created_at, updated_at FROM profiles WHERE id = ?`, id)
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	return r.get(`SELECT id, name, settings, created_at, updated_at FROM profiles WHERE name = ?`, name)
}

func (r *ProfileRepository) get(query string, arg string) (*Profile, error) {
	p := &Profile{}
	var settings string

	err := r.db.QueryRow(query, arg).Scan(&p.ID, &p.Name, &settings, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.Settings = json.RawMessage(settings)
	return p, nil
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(
		`SELECT id, name, settings, created_at, updated_at FROM profiles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p := &Profile{}
		var settings string
		if err := rows.Scan(&p.ID, &p.Name, &settings, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Settings = json.RawMessage(settings)
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Update replaces a profile's name and settings.
func (r *ProfileRepository) Update(p *Profile) error {
	p.UpdatedAt = time.Now()
	if len(p.Settings) == 0 {
		p.Settings = json.RawMessage("{}")
	}

	result, err := r.db.Exec(
		`UPDATE profiles SET name = ?, settings = ?, updated_at = ? WHERE id = ?`,
		p.Name, string(p.Settings), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return uniqueErr(err)
	}

	return requireRow(result)
}

// Delete removes a profile by its ID.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// uniqueErr maps SQLite unique constraint failures to ErrDuplicate.
func uniqueErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
