package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local mirror of an identity-provider account.
// ExternalID is the provider's user id and the key every other table uses.
type User struct {
	ID                string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalID        string  `gorm:"uniqueIndex;not null" json:"external_id"`
	Email             string  `gorm:"index" json:"email,omitempty"`
	FullName          string  `json:"full_name,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	CurrentClassID    *string `gorm:"index" json:"current_class_id,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	LastSeen  *time.Time     `json:"last_seen,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
