package notifications

import (
	"fmt"
	"strconv"
	"strings"
)

// Group addresses a set of websocket subscribers.
//
//	"*"           every connected client
//	"Question_5"  viewers of question 5
//	"12"          every connection of user 12
type Group string

// AllGroup reaches every connected client.
const AllGroup Group = "*"

const questionGroupPrefix = "Question_"

// QuestionGroup returns the group of viewers of a question.
func QuestionGroup(questionID uint) Group {
	return Group(questionGroupPrefix + strconv.FormatUint(uint64(questionID), 10))
}

// UserGroup returns the personal group of a user.
func UserGroup(userID uint) Group {
	return Group(strconv.FormatUint(uint64(userID), 10))
}

// ParseGroup validates a group name received from a client.
func ParseGroup(s string) (Group, error) {
	s = strings.TrimSpace(s)
	if s == string(AllGroup) {
		return AllGroup, nil
	}
	if rest, ok := strings.CutPrefix(s, questionGroupPrefix); ok {
		if id, err := strconv.ParseUint(rest, 10, 32); err == nil && id > 0 {
			return QuestionGroup(uint(id)), nil
		}
		return "", fmt.Errorf("invalid question group %q", s)
	}
	if id, err := strconv.ParseUint(s, 10, 32); err == nil && id > 0 {
		return UserGroup(uint(id)), nil
	}
	return "", fmt.Errorf("unknown group %q", s)
}

// Kind returns "all", "question" or "user".
func (g Group) Kind() string {
	switch {
	case g == AllGroup:
		return "all"
	case strings.HasPrefix(string(g), questionGroupPrefix):
		return "question"
	default:
		return "user"
	}
}

// UserID returns the owner of a personal group.
func (g Group) UserID() (uint, bool) {
	if g.Kind() != "user" {
		return 0, false
	}
	id, err := strconv.ParseUint(string(g), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
