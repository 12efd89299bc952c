package dto

import (
	"time"

	"github.com/rollcall/rollcall/internal/model"
)

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login.
// Login is matched against emails first, then usernames.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserListResponse wraps a list of users.
type UserListResponse struct {
	Data []UserResponse `json:"data"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// ToUserListResponse converts a slice of User models.
func ToUserListResponse(users []*model.User) *UserListResponse {
	data := make([]UserResponse, len(users))
	for i, user := range users {
		data[i] = *ToUserResponse(user)
	}
	return &UserListResponse{Data: data}
}
