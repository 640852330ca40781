package database

import "qaforum/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// The order matches foreign key dependencies.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Tag{},
		&models.Question{},
		&models.Answer{},
		&models.Vote{},
		&models.Report{},
		&models.Notification{},
		&models.Material{},
	}
}
