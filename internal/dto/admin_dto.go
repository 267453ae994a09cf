package dto

import (
	"time"

	"github.com/noah-isme/eduguide-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// AdminStatsResponse feeds the administrator dashboard.
type AdminStatsResponse struct {
	TeacherCount  int64 `json:"teacherCount"`
	StudentCount  int64 `json:"studentCount"`
	RecentUploads int64 `json:"recentUploads"`
}

// UserCreateRequest provisions an administrator or teacher account.
type UserCreateRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin teacher"`
}

// UserResponse serialises an account without its credential.
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
