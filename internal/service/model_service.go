package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"printvault/internal/domain"
	"printvault/internal/storagekey"
)

const maxModelNameLength = 255

// ModelService управляет жизненным циклом моделей: создание, переименование
// и мягкое удаление. Содержимое модели живет в VersionService.
type ModelService struct {
	models ModelStore
	usage  *UsageService
}

func NewModelService(models ModelStore, usage *UsageService) *ModelService {
	return &ModelService{models: models, usage: usage}
}

// CreateModel создает пустую модель без версий. Слаг выводится из имени и
// уникализируется числовым суффиксом внутри организации.
func (s *ModelService) CreateModel(ctx context.Context, orgID string, name string, description string) (*domain.Model, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxModelNameLength {
		return nil, ErrInvalidName
	}

	slug, err := s.uniqueSlug(ctx, orgID, storagekey.Slug(name))
	if err != nil {
		return nil, err
	}

	model := &domain.Model{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Slug:           slug,
		Description:    description,
	}

	if err := s.models.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := s.usage.AddModels(ctx, orgID, 1); err != nil {
		log.Printf("[Model] Failed to bump model counter for org %s: %v", orgID, err)
	}
	return model, nil
}

func (s *ModelService) uniqueSlug(ctx context.Context, orgID string, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		exists, err := s.models.SlugExists(ctx, orgID, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *ModelService) GetModel(ctx context.Context, modelID uuid.UUID, orgID string) (*domain.Model, error) {
	model, err := s.models.GetForOrg(ctx, modelID, orgID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return model, nil
}

func (s *ModelService) ListModels(ctx context.Context, orgID string) ([]domain.Model, error) {
	models, err := s.models.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return models, nil
}

// RenameModel меняет имя и описание. Слаг остается прежним: он участвует
// во внешних ссылках.
func (s *ModelService) RenameModel(ctx context.Context, modelID uuid.UUID, orgID string, name string, description string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxModelNameLength {
		return ErrInvalidName
	}

	if err := s.models.Rename(ctx, modelID, orgID, name, description); err != nil {
		return mapNoRows(err)
	}
	return nil
}

// DeleteModel помечает модель удаленной. Объекты в хранилище остаются до
// фоновой очистки; счетчики организации сдвигаются сразу.
func (s *ModelService) DeleteModel(ctx context.Context, modelID uuid.UUID, orgID string) error {
	if err := s.models.SoftDelete(ctx, modelID, orgID); err != nil {
		return mapNoRows(err)
	}

	if err := s.usage.AddModels(ctx, orgID, -1); err != nil {
		log.Printf("[Model] Failed to bump model counter for org %s: %v", orgID, err)
	}
	// место освобождается для квоты сразу, объекты удалит очистка
	if err := s.usage.Reconcile(ctx, orgID); err != nil {
		log.Printf("[Model] Failed to reconcile storage counter for org %s: %v", orgID, err)
	}
	return nil
}
