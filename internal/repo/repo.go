package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/avdeyev/identity-service/internal/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateEmail     = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type GormRepo struct {
	DB *gorm.DB
}

// Migrate creates the users and sequence_counters tables.
func (r *GormRepo) Migrate() error {
	return r.DB.AutoMigrate(&models.User{}, &models.SequenceCounter{})
}
