package services

import (
	"context"
	"fmt"
	"time"

	"datematch-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// UserAccountStore is the user service's view of user storage
type UserAccountStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// UserService handles user-related business logic
type UserService struct {
	users     UserAccountStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserAccountStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

func validGender(g string) bool {
	return g == models.GenderMale || g == models.GenderFemale
}

// Register creates a new user account
func (s *UserService) Register(ctx context.Context, phone, displayName, gender string, preferences []string) (*models.User, string, error) {
	if !phonePattern.MatchString(phone) {
		return nil, "", &models.ValidationError{Field: "phone_number", Message: "not a valid phone number"}
	}
	if displayName == "" {
		return nil, "", &models.ValidationError{Field: "display_name", Message: "required"}
	}
	if !validGender(gender) {
		return nil, "", &models.ValidationError{Field: "gender", Message: "must be male or female"}
	}
	if len(preferences) == 0 {
		return nil, "", &models.ValidationError{Field: "preferences", Message: "at least one preferred gender required"}
	}
	for _, p := range preferences {
		if !validGender(p) {
			return nil, "", &models.ValidationError{Field: "preferences", Message: "must contain only male or female"}
		}
	}

	exists, err := s.users.PhoneExists(ctx, phone)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check phone existence: %w", err)
	}
	if exists {
		return nil, "", &models.ConflictError{Message: "phone number already registered"}
	}

	user := &models.User{
		ID:                 uuid.New().String(),
		PhoneNumber:        phone,
		DisplayName:        displayName,
		Gender:             gender,
		Preferences:        preferences,
		SubscriptionStatus: "none",
		CreatedAt:          time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Login issues a token for an existing phone number
func (s *UserService) Login(ctx context.Context, phone string) (*models.User, string, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetByID returns a user by id
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdatePushToken stores the device push token for a user
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	return s.users.UpdatePushToken(ctx, userID, pushToken)
}
