package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// Rule is a named request budget.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Fail   FailPolicy
	// PerTarget keys the budget by the route's :id as well, so it applies to
	// each question or answer separately.
	PerTarget bool
}

// Budgets for the forum's write endpoints. Password recovery fails closed.
var (
	RuleSignup         = Rule{Name: "signup", Limit: 3, Window: 10 * time.Minute}
	RuleLogin          = Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	RuleForgotPassword = Rule{Name: "forgot_password", Limit: 3, Window: 15 * time.Minute, Fail: FailClosed}
	RuleResetPassword  = Rule{Name: "reset_password", Limit: 5, Window: 15 * time.Minute}
	RuleChangePassword = Rule{Name: "change_password", Limit: 5, Window: 15 * time.Minute}
	RuleAskQuestion    = Rule{Name: "ask_question", Limit: 5, Window: 5 * time.Minute}
	RulePostAnswer     = Rule{Name: "post_answer", Limit: 10, Window: time.Minute}
	RuleReport         = Rule{Name: "report", Limit: 5, Window: 10 * time.Minute}
	RuleAddMaterial    = Rule{Name: "add_material", Limit: 10, Window: 10 * time.Minute}
	RuleAssistant      = Rule{Name: "assistant", Limit: 10, Window: time.Minute}

	// RuleVoteTarget caps repeated votes by one user on one question or answer.
	RuleVote       = Rule{Name: "vote", Limit: 30, Window: time.Minute}
	RuleVoteTarget = Rule{Name: "vote_target", Limit: 6, Window: time.Minute, PerTarget: true}
)

const rateLimitKeyPrefix = "qaforum:rl"

func rateLimitBypassed() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	switch env {
	case "test", "development", "stress":
		return true
	}
	return false
}

// CheckRateLimit counts one hit against key under rule and reports whether it
// is still within budget. When it is not, retryAfter is the time left in the
// window. Rate limiting is disabled when APP_ENV is "test", "development" or
// "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, rule Rule, key string) (allowed bool, retryAfter time.Duration, err error) {
	if rateLimitBypassed() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}

	full := fmt.Sprintf("%s:%s:%s", rateLimitKeyPrefix, rule.Name, key)
	cnt, err := rdb.Incr(ctx, full).Result()
	if err != nil {
		return false, 0, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, full, rule.Window)
	}
	if cnt <= int64(rule.Limit) {
		return true, 0, nil
	}

	ttl, err := rdb.TTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		// A key left without expiry would block forever.
		rdb.Expire(ctx, full, rule.Window)
		ttl = rule.Window
	}
	return false, ttl, nil
}

// rateLimitKey identifies the caller: the signed-in user when present,
// otherwise the remote IP.
func rateLimitKey(c *fiber.Ctx, rule Rule) string {
	var key string
	if uid := c.Locals("userID"); uid != nil {
		key = fmt.Sprintf("user:%v", uid)
	} else {
		key = "ip:" + c.IP()
	}
	if rule.PerTarget {
		key += ":" + c.Route().Path + ":" + c.Params("id")
	}
	return key
}

// RateLimit returns a Fiber middleware enforcing every rule in order. The
// first exhausted rule answers 429 with a Retry-After header.
func RateLimit(rdb *redis.Client, rules ...Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, rule := range rules {
			allowed, retryAfter, err := CheckRateLimit(c.UserContext(), rdb, rule, rateLimitKey(c, rule))
			if err != nil {
				if rule.Fail == FailClosed {
					Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
						slog.String("path", c.Path()),
						slog.String("rule", rule.Name),
						slog.String("error", err.Error()),
					)
					return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
						Error: "Rate limiting is unavailable, try again later",
						Code:  models.CodeDependency,
					})
				}
				continue
			}
			if !allowed {
				observability.RateLimitRejections.WithLabelValues(rule.Name).Inc()
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
					Error: "Too many requests, slow down",
					Code:  models.CodeRateLimited,
				})
			}
		}
		return c.Next()
	}
}
