package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Role is a user's permission level.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// User is a profile record. For accounts created through Firebase the ID is
// the Firebase UID.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;size:128"`
	Name        string    `json:"name" gorm:"size:100"`
	Email       string    `json:"email" gorm:"uniqueIndex;size:255"`
	Avatar      string    `json:"avatar"`
	Bio         string    `json:"bio,omitempty"`
	Role        Role      `json:"role" gorm:"size:20;default:user;index"`
	Password    string    `json:"-"`
	FirebaseUID string    `json:"firebase_uid,omitempty" gorm:"uniqueIndex;size:128;default:null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserCompact is the denormalized author/participant snapshot embedded in
// documents.
type UserCompact struct {
	ID     string `json:"id" bson:"id"`
	Name   string `json:"name" bson:"name"`
	Avatar string `json:"avatar" bson:"avatar"`
}

// ToCompact returns the denormalized snapshot of u.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// IsAdmin reports whether u may use the admin endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DefaultAvatar builds the generated initials avatar used when a profile has
// no picture.
func DefaultAvatar(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(name))
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Name   string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,url"`
	Bio    string `json:"bio,omitempty" validate:"omitempty,max=500"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin moderator user"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
