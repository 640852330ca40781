package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/observability"
	"qaforum/internal/repository"
	"qaforum/internal/storage"
	"qaforum/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// MaxMaterialSizeBytes caps a single material upload.
const MaxMaterialSizeBytes = 10 * 1024 * 1024

// Material update actions carried by ReceiveMaterialUpdate.
const (
	MaterialAdded      = "added"
	MaterialDownloaded = "downloaded"
	MaterialDeleted    = "deleted"
)

type MaterialService struct {
	materials repository.MaterialRepository
	users     repository.UserRepository
	store     storage.FileStore
	pub       notifications.Publisher
}

type AddMaterialInput struct {
	UserID      uint   `json:"-"`
	Title       string `json:"title" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"required,notblank,max=500"`
	Filename    string `json:"file_name" validate:"required"`
	ContentType string `json:"-"`
	Content     []byte `json:"file" validate:"required"`
}

type MaterialPage struct {
	Items    []models.Material `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   string            `json:"search,omitempty"`
}

type materialUpdate struct {
	Action     string `json:"action"`
	MaterialID uint   `json:"material_id"`
	Downloads  int    `json:"downloads"`
}

func NewMaterialService(
	materials repository.MaterialRepository,
	users repository.UserRepository,
	store storage.FileStore,
	pub notifications.Publisher,
) *MaterialService {
	return &MaterialService{materials: materials, users: users, store: store, pub: pub}
}

// Add stores the file and records the material.
func (s *MaterialService) Add(ctx context.Context, in AddMaterialInput) (_ *models.Material, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "material.add", attribute.Int("bytes", len(in.Content)))
	defer span.End(&err)

	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(in.Content) > MaxMaterialSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File must be %dMB or smaller", MaxMaterialSizeBytes/(1024*1024)))
	}
	if s.store == nil {
		return nil, models.NewDependencyError("File storage is not configured", nil)
	}
	author, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(in.Content)
	}
	key := fmt.Sprintf("materials/%s_%s", uuid.NewString(), storage.SanitizeFilename(in.Filename))
	obj, err := s.store.Put(ctx, key, contentType, bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewDependencyError("Could not store file", err)
	}

	uid := author.ID
	m := &models.Material{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		FileLink:    obj.URL,
		StorageKey:  obj.Key,
		UserID:      &uid,
	}
	if err := s.materials.Create(ctx, m); err != nil {
		if derr := s.store.Delete(ctx, obj.Key); derr != nil {
			observability.LogAsyncOperationError(ctx, "material.cleanup", derr, slog.String("key", obj.Key))
		}
		return nil, err
	}
	m.User = author

	publish(ctx, s.pub, notifications.AllGroup, notifications.EventMaterialUpdate, materialUpdate{
		Action:     MaterialAdded,
		MaterialID: m.ID,
	})
	return m, nil
}

func (s *MaterialService) Get(ctx context.Context, id uint) (*models.Material, error) {
	return s.materials.GetByID(ctx, id)
}

func (s *MaterialService) List(ctx context.Context, page int, search string) (*MaterialPage, error) {
	page = pageOrFirst(page)
	search = strings.TrimSpace(search)
	items, total, err := s.materials.List(ctx, search, repository.NewPage(page, MaterialPageSize))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Material{}
	}
	return &MaterialPage{Items: items, Total: total, Page: page, PageSize: MaterialPageSize, Search: search}, nil
}

func (s *MaterialService) ListByUser(ctx context.Context, userID uint) ([]models.Material, error) {
	return s.materials.ListByUser(ctx, userID, ProfileMaterialLimit)
}

// RecordDownload counts one download and returns the material so the caller
// can redirect to its FileLink.
func (s *MaterialService) RecordDownload(ctx context.Context, id uint) (*models.Material, error) {
	m, err := s.materials.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.pub, notifications.AllGroup, notifications.EventMaterialUpdate, materialUpdate{
		Action:     MaterialDownloaded,
		MaterialID: m.ID,
		Downloads:  m.Downloads,
	})
	return m, nil
}

// Delete removes a material. Only its uploader or an admin may do so.
func (s *MaterialService) Delete(ctx context.Context, actorID, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "service", "material.delete")
	defer span.End(&err)

	m, err := s.materials.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.UserID == nil || *m.UserID != actorID {
		actor, err := s.users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin {
			return models.NewForbiddenError("You can only delete your own materials")
		}
	}
	if err := s.materials.Delete(ctx, id); err != nil {
		return err
	}
	if s.store != nil && m.StorageKey != "" {
		if err := s.store.Delete(ctx, m.StorageKey); err != nil {
			observability.LogAsyncOperationError(ctx, "material.file_delete", err, slog.String("key", m.StorageKey))
		}
	}
	publish(ctx, s.pub, notifications.AllGroup, notifications.EventMaterialUpdate, materialUpdate{
		Action:     MaterialDeleted,
		MaterialID: id,
	})
	return nil
}
