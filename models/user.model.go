package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the identity record practice sessions belong to. Authentication is
// handled upstream; this service only consumes the id carried in the JWT.
type User struct {
	gorm.Model
	Name      string    `gorm:"default:''"`
	Email     string    `gorm:"unique;not null"`
	Role      string    `gorm:"default:'USER'"`
	LastLogin time.Time `gorm:"default:NULL"`
	IsDeleted bool      `gorm:"default:false"`
}
