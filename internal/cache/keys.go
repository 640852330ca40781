package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	QuestionScoreKeyPrefix = "score:question:%d"
	AnswerScoreKeyPrefix   = "score:answer:%d"
	TagListKey             = "tags:all"
)

const (
	UserTTL    = 5 * time.Minute
	ScoreTTL   = 10 * time.Minute
	TagListTTL = 30 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func QuestionScoreKey(questionID uint) string {
	return fmt.Sprintf(QuestionScoreKeyPrefix, questionID)
}

func AnswerScoreKey(answerID uint) string {
	return fmt.Sprintf(AnswerScoreKeyPrefix, answerID)
}

// Invalidate removes keys from the cache. It is a no-op without Redis.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}
