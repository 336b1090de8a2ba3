package database

import (
	"concord-backend/internal/models"
	"context"
)

const profileColumns = "id, email, username, name, image_url, password"

// CreateProfile inserts the profile keeping the id it already has,
// pending registrations get their id before the email is confirmed.
func (s *Store) CreateProfile(ctx context.Context, p models.Profile) error {
	_, err := s.exec(ctx, s.db, "INSERT INTO profiles ("+profileColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Email, p.UserName, p.Name, p.ImageURL, string(p.Password))
	if IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) GetProfile(ctx context.Context, profileID int64) (models.Profile, error) {
	var p models.Profile
	err := s.get(ctx, s.db, &p, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", profileID)
	return p, err
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	var p models.Profile
	err := s.get(ctx, s.db, &p, "SELECT "+profileColumns+" FROM profiles WHERE email = ?", email)
	return p, err
}

func (s *Store) ProfileExists(ctx context.Context, profileID int64) (bool, error) {
	var count int
	err := s.get(ctx, s.db, &count, "SELECT COUNT(*) FROM profiles WHERE id = ?", profileID)
	return count > 0, err
}

// EmailOrUsernameTaken is checked before a registration is stored, the unique
// constraints still guard the insert on confirmation.
func (s *Store) EmailOrUsernameTaken(ctx context.Context, email string, username string) (bool, error) {
	var count int
	err := s.get(ctx, s.db, &count, "SELECT COUNT(*) FROM profiles WHERE email = ? OR username = ?", email, username)
	return count > 0, err
}

// UpdateProfile changes the fields that aren't empty.
func (s *Store) UpdateProfile(ctx context.Context, profileID int64, name string, imageURL string) error {
	if name != "" {
		_, err := s.exec(ctx, s.db, "UPDATE profiles SET name = ? WHERE id = ?", name, profileID)
		if err != nil {
			return err
		}
	}
	if imageURL != "" {
		_, err := s.exec(ctx, s.db, "UPDATE profiles SET image_url = ? WHERE id = ?", imageURL, profileID)
		if err != nil {
			return err
		}
	}
	return nil
}
