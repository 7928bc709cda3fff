package auth

import "time"

// User is the domain representation of an account holder (an agreement
// creator). It mirrors the users table and should not include JSON
// annotations so it can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
