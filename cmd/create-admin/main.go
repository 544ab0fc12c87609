// create-admin provisions an admin account with a fresh TOTP secret. The
// otpauth URL is printed once; enroll it in an authenticator app immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"customs-backend/internal/config"
	"customs-backend/internal/db"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db.InitDB()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "customs-backend",
		AccountName: *email,
	})
	if err != nil {
		log.Fatalf("failed to generate TOTP secret: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	secret := key.Secret()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        *email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		TOTPSecret:   &secret,
	}

	users := repository.NewUserRepository(db.DB)
	if err := users.Create(context.Background(), user); err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}

	fmt.Printf("admin created: %s (%s)\n", user.Email, user.ID)
	fmt.Println()
	fmt.Println("TOTP enrollment URL (shown once):")
	fmt.Println(key.URL())
}
