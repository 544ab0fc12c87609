package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"customs-backend/internal/config"
	"customs-backend/internal/dto"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	// The same error covers unknown accounts so login does not leak which
	// emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidTOTP is returned when an admin's one-time code does not verify
	ErrInvalidTOTP = errors.New("invalid one-time code")

	// ErrTOTPRequired is returned when an admin logs in through the operator
	// endpoint without a one-time code
	ErrTOTPRequired = errors.New("one-time code required for admin accounts")
)

// AuthService authenticates dashboard users and issues JWT tokens
type AuthService struct {
	users  repository.UserRepository
	logger *logrus.Entry
}

// NewAuthService creates a new AuthService
func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{
		users:  users,
		logger: logrus.WithField("component", "auth_service"),
	}
}

// Login verifies an operator's credentials and returns a signed token.
// Admin accounts must use AdminLogin so the TOTP step is never skipped.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.verifyPassword(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	if user.IsAdmin() {
		return "", nil, ErrTOTPRequired
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// AdminLogin verifies credentials plus the TOTP code for an admin account
func (s *AuthService) AdminLogin(ctx context.Context, email, password, totpCode string) (string, *models.User, error) {
	user, err := s.verifyPassword(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	if !user.IsAdmin() {
		return "", nil, ErrInvalidCredentials
	}
	if user.TOTPSecret == nil || !totp.Validate(totpCode, *user.TOTPSecret) {
		s.logger.WithField("email", email).Warn("admin login rejected: TOTP validation failed")
		return "", nil, ErrInvalidTOTP
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Register creates a new operator account
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleOperator,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithField("email", email).Info("user registered")
	return user, nil
}

func (s *AuthService) verifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	expiry := time.Duration(config.AppConfig.JWT.ExpiryHours) * time.Hour

	claims := dto.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWT.Secret))
}
