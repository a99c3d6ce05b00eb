package services

import (
	"context"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PhotoStore is the photo service's view of photo storage
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Photo, error)
	AddLike(ctx context.Context, photoID, userID string) (bool, error)
}

// PhotoService brokers profile photo uploads. Storage and delivery stay in
// S3/CDN; this service only issues pre-signed upload URLs and records the
// resulting objects.
type PhotoService struct {
	photos   PhotoStore
	s3Client *s3.Client
	s3Bucket string
	region   string
}

// NewPhotoService creates a new photo service
func NewPhotoService(photos PhotoStore, region, bucket, accessKey, secretKey, endpoint string) (*PhotoService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &PhotoService{
		photos:   photos,
		s3Client: s3Client,
		s3Bucket: bucket,
		region:   region,
	}, nil
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	PhotoID   string `json:"photo_id"`
	ExpiresIn int    `json:"expires_in"`
}

// GetPreSignedURL generates a pre-signed URL for uploading a profile photo
func (s *PhotoService) GetPreSignedURL(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	photoID := uuid.New().String()
	s3Key := fmt.Sprintf("%s/%s.jpg", userID, photoID)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(s3Key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	s3URL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.s3Bucket, s.region, s3Key)
	photo := &models.Photo{
		ID:        photoID,
		UserID:    userID,
		S3URL:     s3URL,
		CreatedAt: time.Now(),
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to create photo record: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		PhotoID:   photoID,
		ExpiresIn: 300,
	}, nil
}

// GetByID returns a photo by id
func (s *PhotoService) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	return s.photos.GetByID(ctx, id)
}

// GetByUser lists a user's photos
func (s *PhotoService) GetByUser(ctx context.Context, userID string) ([]*models.Photo, error) {
	return s.photos.GetByUserID(ctx, userID)
}

// Like records a like on a photo, idempotently
func (s *PhotoService) Like(ctx context.Context, photoID, userID string) (bool, error) {
	return s.photos.AddLike(ctx, photoID, userID)
}
