package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qaforum/internal/config"
	"qaforum/internal/email"
	"qaforum/internal/middleware"
	"qaforum/internal/models"
	"qaforum/internal/observability"
	"qaforum/internal/repository"
	"qaforum/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	WSTicketTTL      = 60 * time.Second
	PasswordResetTTL = 30 * time.Minute

	blacklistKeyPrefix = "blacklist:"
	wsTicketKeyPrefix  = "ws_ticket:"
	resetKeyPrefix     = "pwreset:"
)

// ForgotPasswordMessage is returned whether or not the address is known.
const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// AuthService issues and revokes access tokens, websocket tickets and
// password reset tokens.
type AuthService struct {
	users    repository.UserRepository
	redis    *redis.Client
	mail     email.Sender
	secret   string
	baseURL  string
	hashCost int
	now      func() time.Time
}

type SignupInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required,password"`
}

type LoginInput struct {
	Login    string `json:"login" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	UserID   uint   `json:"user_id" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type ChangePasswordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, rdb *redis.Client, mail email.Sender, cfg *config.Config) *AuthService {
	s := &AuthService{
		users:    users,
		redis:    rdb,
		mail:     mail,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	if cfg != nil {
		s.secret = cfg.JWTSecret
		s.baseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	}
	return s
}

// HashPassword bcrypt-hashes a password with the service's cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	if s.secret == "" {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	token, claims, err := middleware.IssueToken(s.secret, user.ID, user.Username, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (_ *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "auth.signup")
	defer span.End(&err)

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: in.Username, Email: in.Email, Password: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login accepts a username or an email address.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "auth.login")
	defer span.End(&err)

	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	user, err := s.users.GetByLogin(ctx, in.Login)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsLocked(s.now()) {
		return nil, models.NewForbiddenError("This account is locked.")
	}
	return s.issue(user)
}

// Authenticate parses a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (middleware.TokenClaims, error) {
	claims, err := middleware.ParseToken(s.secret, token)
	if err != nil {
		return middleware.TokenClaims{}, models.NewUnauthorizedError("Invalid or expired token")
	}
	revoked, err := s.IsRevoked(ctx, claims.JTI)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "auth.revocation_check", err)
	}
	if revoked {
		return middleware.TokenClaims{}, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// Logout blacklists the token's id until the token would have expired.
func (s *AuthService) Logout(ctx context.Context, claims middleware.TokenClaims) error {
	if s.redis == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistKeyPrefix+claims.JTI, "1", ttl).Err(); err != nil {
		return models.NewDependencyError("Could not revoke token", err)
	}
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.redis == nil || jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IssueWSTicket returns a single-use ticket that lets a browser open the
// websocket without putting the JWT in the URL.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if s.redis == nil {
		return "", models.NewDependencyError("Realtime tickets are unavailable", nil)
	}
	ticket := uuid.NewString()
	if err := s.redis.Set(ctx, wsTicketKeyPrefix+ticket, strconv.FormatUint(uint64(userID), 10), WSTicketTTL).Err(); err != nil {
		return "", models.NewDependencyError("Could not issue ticket", err)
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket and returns its user.
func (s *AuthService) RedeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil || ticket == "" {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	raw, err := s.redis.GetDel(ctx, wsTicketKeyPrefix+ticket).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.LogAsyncOperationError(ctx, "auth.ws_ticket", err)
		}
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return uint(id), nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ForgotPassword emails a reset link when the address belongs to a user.
// Callers answer with ForgotPasswordMessage either way.
func (s *AuthService) ForgotPassword(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.NewValidationError("Email is required.")
	}
	user, err := s.users.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if s.redis == nil {
		return models.NewDependencyError("Password reset is unavailable", nil)
	}

	token, err := newResetToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	key := fmt.Sprintf("%s%d", resetKeyPrefix, user.ID)
	if err := s.redis.Set(ctx, key, token, PasswordResetTTL).Err(); err != nil {
		return models.NewDependencyError("Could not start password reset", err)
	}

	link := fmt.Sprintf("%s/reset-password?user_id=%d&token=%s", s.baseURL, user.ID, url.QueryEscape(token))
	msg, err := email.PasswordReset(user.Email, link)
	if err != nil {
		return models.NewInternalError(err)
	}
	if s.mail == nil {
		return nil
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		observability.LogAsyncOperationError(ctx, "email.password_reset", err, slog.Uint64("user_id", uint64(user.ID)))
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return models.NewValidationError(err.Error())
	}
	if in.Password == "" || in.Confirm == "" {
		return models.NewValidationError("Password and confirmation are required.")
	}
	if in.Password != in.Confirm {
		return models.NewValidationError("Password and confirmation do not match.")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if s.redis == nil {
		return models.NewDependencyError("Password reset is unavailable", nil)
	}

	key := fmt.Sprintf("%s%d", resetKeyPrefix, in.UserID)
	stored, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && subtle.ConstantTimeCompare([]byte(stored), []byte(in.Token)) != 1) {
		return models.NewValidationError("Invalid or expired reset token.")
	}
	if err != nil {
		return models.NewDependencyError("Could not verify reset token", err)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, in.UserID, hash); err != nil {
		return err
	}
	s.redis.Del(ctx, key)
	return nil
}

// ChangePassword verifies the current password before replacing it.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	if in.New != in.Confirm {
		return models.NewValidationError("New password and confirmation do not match.")
	}
	if err := validation.ValidatePassword(in.New); err != nil {
		return models.NewValidationError(err.Error())
	}
	cached, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	// GetByID is served from cache without the hash.
	user, err := s.users.GetByUsername(ctx, cached.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", userID)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Current)) != nil {
		return models.NewValidationError("Current password is incorrect.")
	}
	hash, err := s.HashPassword(in.New)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}
