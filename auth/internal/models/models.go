package models

import (
	"time"
)

type AuthUser struct {
	ID                     string    `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	Password               string    `json:"-"`
	ProfilePicture         string    `json:"profilePicture"`
	Country                string    `json:"country"`
	EmailVerified          bool      `json:"emailVerified"`
	EmailVerificationToken string    `json:"-"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

type SignupRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Country        string `json:"country"`
	ProfilePicture string `json:"profilePicture"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}
