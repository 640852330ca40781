package service

import (
	"context"
	"strings"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/observability"
	"qaforum/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// lockDurationYears is long enough to act as a permanent ban.
const lockDurationYears = 100

// AdminService manages accounts. Callers are expected to have passed the
// admin check already.
type AdminService struct {
	users repository.UserRepository
	now   func() time.Time
}

type AdminUser struct {
	models.User
	Roles  []string `json:"roles"`
	Locked bool     `json:"locked"`
}

type AdminUserPage struct {
	Items    []AdminUser `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Search   string      `json:"search,omitempty"`
}

func NewAdminService(users repository.UserRepository) *AdminService {
	return &AdminService{users: users, now: time.Now}
}

func (s *AdminService) view(u models.User) AdminUser {
	return AdminUser{User: u, Roles: u.Roles(), Locked: u.IsLocked(s.now())}
}

func (s *AdminService) ListUsers(ctx context.Context, search string, page int) (*AdminUserPage, error) {
	page = pageOrFirst(page)
	search = strings.TrimSpace(search)
	users, total, err := s.users.List(ctx, search, repository.NewPage(page, AdminUserPageSize))
	if err != nil {
		return nil, err
	}
	items := make([]AdminUser, 0, len(users))
	for _, u := range users {
		items = append(items, s.view(u))
	}
	return &AdminUserPage{Items: items, Total: total, Page: page, PageSize: AdminUserPageSize, Search: search}, nil
}

func (s *AdminService) Lock(ctx context.Context, actorID, targetID uint) (_ *AdminUser, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "admin.lock", attribute.Int64("user.id", int64(targetID)))
	defer span.End(&err)

	if actorID == targetID {
		return nil, models.NewValidationError("You cannot lock your own account.")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	until := s.now().AddDate(lockDurationYears, 0, 0)
	if err := s.users.SetLockedUntil(ctx, targetID, &until); err != nil {
		return nil, err
	}
	return s.reload(ctx, targetID)
}

func (s *AdminService) Unlock(ctx context.Context, targetID uint) (*AdminUser, error) {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if err := s.users.SetLockedUntil(ctx, targetID, nil); err != nil {
		return nil, err
	}
	return s.reload(ctx, targetID)
}

// SetRoles replaces the target's roles. "User" is implied and always kept.
func (s *AdminService) SetRoles(ctx context.Context, actorID, targetID uint, roles []string) (_ *AdminUser, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "admin.set_roles", attribute.Int64("user.id", int64(targetID)))
	defer span.End(&err)

	var isAdmin, isModerator bool
	for _, r := range roles {
		switch strings.TrimSpace(r) {
		case models.RoleAdmin:
			isAdmin = true
		case models.RoleModerator:
			isModerator = true
		case models.RoleUser:
		default:
			return nil, models.NewValidationError("Unknown role: " + r)
		}
	}
	if actorID == targetID && !isAdmin {
		return nil, models.NewValidationError("You cannot remove your own Admin role.")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if err := s.users.SetRoles(ctx, targetID, isAdmin, isModerator); err != nil {
		return nil, err
	}
	return s.reload(ctx, targetID)
}

func (s *AdminService) reload(ctx context.Context, id uint) (*AdminUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*u)
	return &v, nil
}
