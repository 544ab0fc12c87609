package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customs-backend/internal/config"
	"customs-backend/internal/dto"
	"customs-backend/internal/models"
)

func withJWTConfig(t *testing.T, secret string) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{}
	config.AppConfig.JWT.Secret = secret
	config.AppConfig.JWT.ExpiryHours = 24
	t.Cleanup(func() { config.AppConfig = prev })
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, expiresAt time.Time) string {
	t.Helper()
	claims := dto.JWTClaims{
		UserID: "user-1",
		Email:  "ops@example.com",
		Role:   models.RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   "user-1",
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateTokenRoundtrip(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	token := signToken(t, "unit-test-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	token := signToken(t, "some-other-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	_, err := ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	token := signToken(t, "unit-test-secret", jwt.SigningMethodHS256, time.Now().Add(-time.Minute))

	_, err := ValidateToken(token)
	assert.Error(t, err)
}

func newAuthedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := NewAuthMiddleware(logrus.New())
	r.GET("/protected", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	r := newAuthedRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_AUTH_HEADER")
}

func TestRequireAuthRejectsMalformedHeader(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	r := newAuthedRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	r := newAuthedRouter()
	token := signToken(t, "unit-test-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	withJWTConfig(t, "unit-test-secret")
	r := newAuthedRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}
