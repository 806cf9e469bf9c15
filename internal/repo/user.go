package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	pkghash "github.com/avdeyev/identity-service/pkg/hash"

	"github.com/avdeyev/identity-service/internal/models"
)

// Read paths select these columns only; the password hash never leaves the
// store except through VerifyCredentials' comparison.
var profileColumns = []string{
	"id", "email", "first_name", "last_name", "phone",
	"avatar_ref", "role", "verified", "created_at",
}

// Columns the generic update path may touch. Password changes go through
// SetPassword so they are always re-hashed, verification through SetVerified.
var updatableColumns = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"email":      true,
	"phone":      true,
	"avatar_ref": true,
}

// Create allocates the next account id and inserts the record in one
// transaction. If the insert fails the counter increment rolls back with it,
// so ids stay contiguous and no account is ever committed without one.
func (r *GormRepo) Create(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextID(tx, UserIDCounter)
		if err != nil {
			return err
		}
		u.ID = id
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
}

// VerifyCredentials loads the account by email and compares the password
// against the stored hash. The full record stays inside this method; callers
// only ever see the projection.
func (r *GormRepo) VerifyCredentials(ctx context.Context, email, password string) (*models.Profile, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !pkghash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return profileOf(&user), nil
}

func (r *GormRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getProfile(ctx, "email = ?", email)
}

func (r *GormRepo) GetByID(ctx context.Context, id uint64) (*models.Profile, error) {
	return r.getProfile(ctx, "id = ?", id)
}

func (r *GormRepo) getProfile(ctx context.Context, query string, arg any) (*models.Profile, error) {
	var p models.Profile
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Select(profileColumns).
		Where(query, arg).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) List(ctx context.Context) ([]models.Profile, error) {
	var out []models.Profile
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Select(profileColumns).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile merges only the supplied fields into the record and returns
// the fresh projection. Unknown or protected columns are dropped, not
// rejected, matching the permissive update the API always had.
func (r *GormRepo) UpdateProfile(ctx context.Context, id uint64, fields map[string]any) (*models.Profile, error) {
	filtered := make(map[string]any, len(fields))
	for k, v := range fields {
		if updatableColumns[k] {
			filtered[k] = v
		}
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row struct{ ID uint64 }
		res := tx.Model(&models.User{}).Select("id").Where("id = ?", id).Limit(1).Find(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if len(filtered) == 0 {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(filtered).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetPassword rewrites the stored hash for the account with this email.
func (r *GormRepo) SetPassword(ctx context.Context, email, passwordHash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVerified marks the account verified. Verified is terminal, so calling
// this twice is harmless.
func (r *GormRepo) SetVerified(ctx context.Context, email string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Update("verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record. A missing id is not an error here; the caller
// decides whether that matters.
func (r *GormRepo) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}

func profileOf(u *models.User) *models.Profile {
	return &models.Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarRef: u.AvatarRef,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
