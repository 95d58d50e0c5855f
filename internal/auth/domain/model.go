package domain

import "time"

// User is an account. PasswordHash is nil for users that only ever signed
// in through Firebase.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash *string    `json:"-"`
	FirebaseUID  *string    `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// FirebaseIdentity is what a verified Firebase ID token tells us.
type FirebaseIdentity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}
