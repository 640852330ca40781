package models

import (
	"strings"
	"time"
)

// ReportStatus is the lifecycle marker of a Report.
type ReportStatus string

const (
	// ReportPending is the initial state; the target stays visible.
	ReportPending ReportStatus = "Pending"
	// ReportAccepted means the report was upheld and the target is hidden.
	ReportAccepted ReportStatus = "Accepted"
	// ReportDisabled means the report was dismissed and the target is kept visible.
	ReportDisabled ReportStatus = "Disabled"
)

// ParseReportStatus matches s case-insensitively against the known statuses.
func ParseReportStatus(s string) (ReportStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return ReportPending, true
	case "accepted":
		return ReportAccepted, true
	case "disabled":
		return ReportDisabled, true
	}
	return "", false
}

// HidesContent reports whether the target must be disabled while a report
// sits in status s.
func HidesContent(s ReportStatus) bool {
	return s == ReportAccepted
}

// CanTransition reports whether a report may move from one status to another.
// A same-status move is always allowed and treated as a no-op by callers.
// With allowReopen false, only Pending -> {Accepted, Disabled} is permitted.
func CanTransition(from, to ReportStatus, allowReopen bool) bool {
	if from == to {
		return true
	}
	switch from {
	case ReportPending:
		return to == ReportAccepted || to == ReportDisabled
	case ReportAccepted, ReportDisabled:
		return allowReopen && to == ReportPending
	}
	return false
}

// Report is a user's complaint against exactly one question or answer.
// A user may report the same target at most once.
type Report struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reports_user_question;uniqueIndex:idx_reports_user_answer" json:"user_id"`
	QuestionID *uint        `gorm:"uniqueIndex:idx_reports_user_question;index" json:"question_id,omitempty"`
	AnswerID   *uint        `gorm:"uniqueIndex:idx_reports_user_answer;index" json:"answer_id,omitempty"`
	Reason     string       `gorm:"size:500;not null" json:"reason"`
	Status     ReportStatus `gorm:"size:16;not null;default:'Pending';index" json:"status"`
	ReportedAt time.Time    `gorm:"not null;index" json:"reported_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Question *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	Answer   *Answer   `gorm:"foreignKey:AnswerID" json:"answer,omitempty"`
}

// Target returns the reported target.
func (r *Report) Target() Target {
	return Target{QuestionID: r.QuestionID, AnswerID: r.AnswerID}
}
