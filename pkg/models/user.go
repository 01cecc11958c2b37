// Package models defines the persisted entities of the config
// generator and the domain errors shared across packages.
package models

import (
	"fmt"
)

// User represents a local user account.
//
// A row is created on a user's first successful directory
// authentication and carries the confirmation state that gates
// credential generation. The ID is the directory-assigned uidNumber,
// so a user keeps the same identity across reinstalls of this service.
type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;not null;size:256" json:"username"`
	DN       string `gorm:"uniqueIndex;size:256;default:null" json:"dn,omitempty"`

	// Activated mirrors the directory's notion of an active account.
	// Deactivated users cannot log in.
	Activated bool `gorm:"not null;default:true" json:"activated"`

	// Confirmed is set by administrative action only, never by the
	// user. Unconfirmed users cannot generate credentials.
	Confirmed bool `gorm:"not null;default:false" json:"confirmed"`

	IsAdmin bool `gorm:"not null;default:false" json:"is_admin"`

	// Profile fields, filled in by the user after first login.
	Name  string `gorm:"size:256" json:"name,omitempty"`
	Email string `gorm:"size:256" json:"email,omitempty"`
	ORCID string `gorm:"size:256" json:"orcid,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// GetDisplayName returns the profile name, or username if not set.
func (u *User) GetDisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// CanGenerateCredentials reports whether the user may reach the
// credential-issuing workflow.
func (u *User) CanGenerateCredentials() bool {
	return u.Confirmed && u.Activated
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.ID == 0 {
		return fmt.Errorf("user id is required")
	}
	return nil
}

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
	}
}
