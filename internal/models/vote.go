package models

import "time"

// Vote values.
const (
	VoteDown    = -1
	VoteNeutral = 0
	VoteUp      = 1
)

// Target points at exactly one of a question or an answer.
type Target struct {
	QuestionID *uint `json:"question_id,omitempty"`
	AnswerID   *uint `json:"answer_id,omitempty"`
}

// QuestionTarget builds a Target for a question id.
func QuestionTarget(id uint) Target { return Target{QuestionID: &id} }

// AnswerTarget builds a Target for an answer id.
func AnswerTarget(id uint) Target { return Target{AnswerID: &id} }

// Valid reports whether exactly one non-zero id is set.
func (t Target) Valid() bool {
	hasQ := t.QuestionID != nil && *t.QuestionID != 0
	hasA := t.AnswerID != nil && *t.AnswerID != 0
	return hasQ != hasA
}

// IsQuestion reports whether the target is a question.
func (t Target) IsQuestion() bool {
	return t.QuestionID != nil && *t.QuestionID != 0
}

// Kind returns "question" or "answer".
func (t Target) Kind() string {
	if t.IsQuestion() {
		return "question"
	}
	return "answer"
}

// ID returns the id of whichever side is set.
func (t Target) ID() uint {
	if t.IsQuestion() {
		return *t.QuestionID
	}
	if t.AnswerID != nil {
		return *t.AnswerID
	}
	return 0
}

// Vote is a single user's signed preference on one target. At most one row
// exists per (user, question) and per (user, answer).
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_votes_user_question;uniqueIndex:idx_votes_user_answer" json:"user_id"`
	QuestionID *uint     `gorm:"uniqueIndex:idx_votes_user_question;index" json:"question_id,omitempty"`
	AnswerID   *uint     `gorm:"uniqueIndex:idx_votes_user_answer;index" json:"answer_id,omitempty"`
	VoteType   int       `gorm:"not null;default:0" json:"vote_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Target returns the vote's target.
func (v *Vote) Target() Target {
	return Target{QuestionID: v.QuestionID, AnswerID: v.AnswerID}
}

// ValidVoteType reports whether t is one of -1, 0, 1.
func ValidVoteType(t int) bool {
	return t >= VoteDown && t <= VoteUp
}
