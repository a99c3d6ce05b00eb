package repository

import (
	"context"
	"fmt"

	"datematch-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhotoRepository handles database operations for profile photos
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create creates a new photo record
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, user_id, s3_url, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, photo.ID, photo.UserID, photo.S3URL, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// GetByID retrieves a photo by ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT id, user_id, s3_url, created_at FROM photos WHERE id = $1`
	var p models.Photo
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.UserID, &p.S3URL, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &models.NotFoundError{Resource: "photo"}
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &p, nil
}

// GetByUserID retrieves a user's photos
func (r *PhotoRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Photo, error) {
	query := `SELECT id, user_id, s3_url, created_at FROM photos WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.S3URL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &p)
	}
	return photos, rows.Err()
}

// AddLike records a like on a photo, idempotently
func (r *PhotoRepository) AddLike(ctx context.Context, photoID, userID string) (bool, error) {
	query := `
		INSERT INTO photo_likes (photo_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (photo_id, user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, photoID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to like photo: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
