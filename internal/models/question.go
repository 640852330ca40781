package models

import "time"

// Question is a forum thread opener. A disabled question is hidden from
// listings for regular users but remains addressable by id.
type Question struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	IsDisabled bool      `gorm:"not null;default:false;index" json:"is_disabled"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tags    []Tag    `gorm:"many2many:question_tags;" json:"tags,omitempty"`
	Answers []Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

// Tag labels questions. Names are stored lower-cased.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer belongs to exactly one question and one author.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	IsDisabled bool      `gorm:"not null;default:false" json:"is_disabled"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Question *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
}
