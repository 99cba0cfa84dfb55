package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"printvault/internal/auth"
	"printvault/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// UploadProfiles принимает партию slicer-файлов в поле "files" и возвращает
// пофайловые результаты. Конфликты требуют отдельного запроса разрешения.
func (h *ProfileHandler) UploadProfiles(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read file %s", fh.Filename), http.StatusBadRequest)
			return
		}
		files = append(files, upload)
	}

	outcomes, err := h.profileService.UploadProfiles(r.Context(), service.UploadProfilesInput{
		VersionID:      versionID,
		OrganizationID: identity.OrganizationID,
		ActorID:        identity.ActorID,
		Files:          files,
		IP:             auth.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

// ListProfiles возвращает профили печати версии.
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	profiles, err := h.profileService.ListProfiles(r.Context(), versionID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profiles)
}

type resolveConflictRequest struct {
	Action            string    `json:"action"`
	TempKey           string    `json:"temp_key"`
	OriginalFilename  string    `json:"original_filename"`
	ExistingProfileID uuid.UUID `json:"existing_profile_id"`
}

// ResolveConflict завершает отложенный конфликт профилей.
func (h *ProfileHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case service.ResolveReplace, service.ResolveKeepBoth, service.ResolveSkip:
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	profile, err := h.profileService.ResolveConflict(r.Context(), service.ResolveConflictInput{
		VersionID:         versionID,
		OrganizationID:    identity.OrganizationID,
		ActorID:           identity.ActorID,
		Action:            req.Action,
		TempKey:           req.TempKey,
		OriginalFilename:  req.OriginalFilename,
		ExistingProfileID: req.ExistingProfileID,
		IP:                auth.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if profile == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile удаляет профиль печати.
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profileID, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	if err := h.profileService.DeleteProfile(r.Context(), profileID, identity.OrganizationID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
