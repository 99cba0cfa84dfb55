package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"printvault/internal/auth"
	"printvault/internal/service"
)

type ModelHandler struct {
	modelService *service.ModelService
	usageService *service.UsageService
}

func NewModelHandler(modelService *service.ModelService, usageService *service.UsageService) *ModelHandler {
	return &ModelHandler{
		modelService: modelService,
		usageService: usageService,
	}
}

type createModelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateModel создает пустую модель без версий.
func (h *ModelHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	model, err := h.modelService.CreateModel(r.Context(), identity.OrganizationID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model)
}

// ListModels возвращает модели организации.
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	models, err := h.modelService.ListModels(r.Context(), identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models)
}

// GetModel возвращает одну модель.
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	modelID, err := uuid.Parse(chi.URLParam(r, "modelID"))
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	model, err := h.modelService.GetModel(r.Context(), modelID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model)
}

type renameModelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RenameModel меняет имя и описание модели.
func (h *ModelHandler) RenameModel(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	modelID, err := uuid.Parse(chi.URLParam(r, "modelID"))
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	var req renameModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.modelService.RenameModel(r.Context(), modelID, identity.OrganizationID, req.Name, req.Description); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteModel мягко удаляет модель.
func (h *ModelHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	modelID, err := uuid.Parse(chi.URLParam(r, "modelID"))
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	if err := h.modelService.DeleteModel(r.Context(), modelID, identity.OrganizationID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetUsage возвращает потребление и лимиты организации.
func (h *ModelHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.usageService.Snapshot(r.Context(), identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
