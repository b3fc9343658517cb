package datastore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// CreateUser inserts a user, updating the password hash if the username
// already exists. Used for config-seeded accounts at startup.
func (ds *DataStore) CreateUser(user *User) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash"}),
	}).Create(user).Error
	if err != nil {
		return dbError(err, "create_user")
	}
	return nil
}

// GetUserByUsername fetches a user by username.
func (ds *DataStore) GetUserByUsername(username string) (*User, error) {
	var user User
	err := ds.DB.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_user")
	}
	return &user, nil
}
