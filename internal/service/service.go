// Package service holds the forum's business rules. Services depend on the
// repository interfaces and on notifications.Publisher; transactions live in
// the repositories.
package service

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"qaforum/internal/notifications"
	"qaforum/internal/observability"
)

// Page sizes used by listings.
const (
	QuestionPageSize         = 5
	AnswerPageSize           = 5
	RecentAnswersPerQuestion = 5
	ReportPageSize           = 6
	AdminUserPageSize        = 4
	NotificationPageSize     = 10
	NotificationSummarySize  = 10
	ProfileQuestionLimit     = 5
	ProfileActivityLimit     = 5
	ProfileMaterialLimit     = 4
	MaterialPageSize         = 10
)

const maxTagLen = 64

var tagPattern = regexp.MustCompile(`<.*?>`)

// CleanText strips markup from rich text and unescapes entities, so that
// "<p>&nbsp;</p>" is empty.
func CleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

// ParseTags splits "go, Concurrency ,go" into ["go", "concurrency"].
func ParseTags(raw string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if r := []rune(name); len(r) > maxTagLen {
			name = string(r[:maxTagLen])
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// publish hands an event to the broadcaster and logs failures. Realtime
// delivery never fails the operation that triggered it.
func publish(ctx context.Context, pub notifications.Publisher, g notifications.Group, event string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, g, event, payload); err != nil {
		observability.LogAsyncOperationError(ctx, "broadcast."+event, err, slog.String("group", string(g)))
	}
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
