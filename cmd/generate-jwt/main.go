// generate-jwt mints a token for API testing without going through login.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"customs-backend/internal/dto"
)

func main() {
	userID := flag.String("user", "test-operator", "user id to embed in the token")
	email := flag.String("email", "operator@example.com", "email to embed in the token")
	role := flag.String("role", "operator", "role: operator or admin")
	hours := flag.Int("hours", 24, "token lifetime in hours")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	now := time.Now()
	claims := dto.JWTClaims{
		UserID: *userID,
		Email:  *email,
		Role:   *role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(*hours) * time.Hour)),
			Subject:   *userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  User ID: %s\n", *userID)
	fmt.Printf("  Email:   %s\n", *email)
	fmt.Printf("  Role:    %s\n", *role)
	fmt.Printf("  Expires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
}
