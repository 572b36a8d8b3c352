package models

import (
	"strings"
	"time"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	IsStaff        bool      `json:"isStaff"`
	IsSuperuser    bool      `json:"isSuperuser"`
	NationalNumber string    `json:"nationalNumber,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FullName joins first and last name, falling back to the email.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Summary is the short form embedded in cases and reports.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.FullName(), Email: u.Email}
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Principal is the authenticated identity every service call acts as.
type Principal struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	IsStaff     bool   `json:"isStaff"`
	IsSuperuser bool   `json:"isSuperuser"`
}

// IsAdmin reports whether the principal bypasses per-case linkage.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdministrator || p.IsSuperuser
}
