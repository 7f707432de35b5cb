package database

import (
	"gorm.io/gorm"
)

var DB *gorm.DB

// GetDB returns the shared gorm handle. Components that need transactional
// isolation should go through repository types instead of this handle.
func GetDB() *gorm.DB {
	return DB
}
