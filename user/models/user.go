package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account identified by email; sessions and transcripts reference
// users by that email.
type User struct {
	ID                  string    `json:"id" gorm:"primaryKey"`
	Email               string    `json:"email" gorm:"uniqueIndex;not null"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	PasswordHash        string    `json:"-"`
	TermsOfUseDisplayed bool      `json:"terms_of_use_displayed"`
	IsGuest             bool      `json:"is_guest"`
	CreatedAt           time.Time `json:"timestamp"`
}

// FriendlyName is the display name used in greetings and mails.
func (u *User) FriendlyName() string {
	if u.FirstName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}

// SetPassword hashes and stores the password.
func (u *User) SetPassword(password string) error {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(bytes)
	return nil
}

// CheckPassword verifies a password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
}
