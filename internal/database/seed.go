package database

import (
	"errors"
	"fmt"

	"walletlink/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// EnsureAdmin creates the operator account from config if it does not exist yet.
// An existing account is left untouched so a password change in config does not
// silently overwrite a rotated one.
func EnsureAdmin(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password not configured")
	}

	var admin models.Admin
	err := db.Where("LOWER(username) = LOWER(?)", username).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("query admin: %w", err)
	}

	const bcryptCost = 12
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin = models.Admin{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
