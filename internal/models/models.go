package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the persisted account record. The id is allocated from the
// sequence counter before insert, never by the database.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"           json:"email"`
	PasswordHash string    `gorm:"not null"                       json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	AvatarRef    string    `json:"profilePic,omitempty"`
	Role         string    `gorm:"not null;default:user"          json:"role"`
	Verified     bool      `gorm:"not null;default:false"         json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the read projection of a User. It has no password hash field
// at all, so nothing above the store can leak one.
type Profile struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	AvatarRef string    `json:"profilePic,omitempty"`
	Role      string    `json:"role"`
	Verified  bool      `json:"isVerified"`
	CreatedAt time.Time `json:"createdAt"`
}

// SequenceCounter is a named auto-increment counter. One row per sequence,
// bumped with an atomic upsert.
type SequenceCounter struct {
	Name  string `gorm:"primaryKey" json:"name"`
	Value uint64 `gorm:"not null"   json:"value"`
}
