package models

import "time"

// NotificationType classifies a Notification row.
type NotificationType string

const (
	NotificationCommentOnQuestion   NotificationType = "comment_on_question"
	NotificationReportStatusChanged NotificationType = "report_status_changed"
)

// Notification is the durable record behind a realtime push.
type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index:idx_notifications_user_created" json:"user_id"`
	Type       NotificationType `gorm:"size:32;not null" json:"type"`
	QuestionID *uint            `gorm:"index" json:"question_id,omitempty"`
	AnswerID   *uint            `gorm:"index" json:"answer_id,omitempty"`
	Message    string           `gorm:"type:text;not null" json:"message"`
	IsRead     bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time        `gorm:"index:idx_notifications_user_created" json:"created_at"`
}

// Material is an uploaded study resource.
type Material struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"size:500;not null" json:"description"`
	FileLink    string    `gorm:"not null" json:"file_link"`
	StorageKey  string    `gorm:"size:300" json:"-"`
	Downloads   int       `gorm:"not null;default:0" json:"downloads"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
