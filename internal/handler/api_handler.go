package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"printvault/internal/auth"
	"printvault/internal/domain"
	"printvault/internal/service"
)

// APIKeyStore проверяет ключи интеграций для программных загрузок.
type APIKeyStore interface {
	GetByKey(ctx context.Context, key string) (*domain.APIKey, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// APIHandler обслуживает программные загрузки по X-API-Key: CI-пайплайны
// и интеграции слайсеров заливают файлы тем же конвейером, что и люди.
type APIHandler struct {
	versionService *service.VersionService
	apiKeys        APIKeyStore
}

func NewAPIHandler(versionService *service.VersionService, apiKeys APIKeyStore) *APIHandler {
	return &APIHandler{
		versionService: versionService,
		apiKeys:        apiKeys,
	}
}

func (h *APIHandler) authenticate(r *http.Request) (*domain.APIKey, error) {
	key, err := auth.APIKeyFromRequest(r)
	if err != nil {
		return nil, err
	}

	apiKey, err := h.apiKeys.GetByKey(r.Context(), key)
	if err != nil {
		return nil, err
	}

	if err := h.apiKeys.TouchLastUsed(r.Context(), apiKey.ID); err != nil {
		log.Printf("[API] Failed to touch key %d: %v", apiKey.ID, err)
	}
	return apiKey, nil
}

// Ingest принимает один файл в поле "file". Пустое поле "version_label"
// создает новую версию, непустое добавляет файл к существующей.
func (h *APIHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	apiKey, err := h.authenticate(r)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	modelID, err := uuid.Parse(chi.URLParam(r, "modelID"))
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		http.Error(w, "No file in upload", http.StatusBadRequest)
		return
	}

	upload, err := readUpload(headers[0])
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	result, err := h.versionService.Ingest(r.Context(), service.IngestInput{
		ModelID:        modelID,
		OrganizationID: apiKey.OrganizationID,
		ActorID:        "api:" + apiKey.Name,
		VersionLabel:   r.FormValue("version_label"),
		VersionName:    r.FormValue("version_name"),
		Changelog:      r.FormValue("changelog"),
		File:           upload,
		IP:             auth.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
