package transport

import (
	"github.com/avdeyev/identity-service/internal/search"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Role    string `json:"role"`
	ID      uint64 `json:"id"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// UpdateUserRequest uses pointers so absent fields stay untouched on merge.
type UpdateUserRequest struct {
	UserID    uint64  `json:"userId"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SearchResponse struct {
	Total int64             `json:"total"`
	Users []search.Document `json:"users"`
}
