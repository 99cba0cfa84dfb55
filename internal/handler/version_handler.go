package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"printvault/internal/auth"
	"printvault/internal/service"
)

const (
	multipartMemoryLimit = 64 << 20
	downloadURLTTL       = 15 * time.Minute
)

type VersionHandler struct {
	versionService *service.VersionService
	archiveService *service.ArchiveService
	modelService   *service.ModelService
}

func NewVersionHandler(
	versionService *service.VersionService,
	archiveService *service.ArchiveService,
	modelService *service.ModelService,
) *VersionHandler {
	return &VersionHandler{
		versionService: versionService,
		archiveService: archiveService,
		modelService:   modelService,
	}
}

// AddVersion принимает multipart-форму: файлы в поле "files", опциональная
// картинка в "preview", текстовые поля "name" и "changelog".
func (h *VersionHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
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

	var preview *service.UploadFile
	if previews := r.MultipartForm.File["preview"]; len(previews) > 0 {
		upload, err := readUpload(previews[0])
		if err != nil {
			http.Error(w, "Failed to read preview image", http.StatusBadRequest)
			return
		}
		preview = &upload
	}

	result, err := h.versionService.AddVersion(r.Context(), service.AddVersionInput{
		ModelID:        modelID,
		OrganizationID: identity.OrganizationID,
		ActorID:        identity.ActorID,
		Name:           r.FormValue("name"),
		Changelog:      r.FormValue("changelog"),
		Files:          files,
		PreviewImage:   preview,
		IP:             auth.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListVersions возвращает версии модели от новых к старым.
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
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

	versions, err := h.versionService.ListVersions(r.Context(), modelID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

// GetVersion возвращает версию вместе с файлами.
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
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

	version, files, err := h.versionService.GetVersion(r.Context(), versionID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version,
		"files":   files,
	})
}

type updateVersionRequest struct {
	Name      string `json:"name"`
	Changelog string `json:"changelog"`
}

// UpdateVersionMeta редактирует имя и changelog версии.
func (h *VersionHandler) UpdateVersionMeta(w http.ResponseWriter, r *http.Request) {
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

	var req updateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	version, err := h.versionService.UpdateVersionMeta(r.Context(), versionID, identity.OrganizationID, req.Name, req.Changelog)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}

// DownloadArchive стримит ZIP со всеми файлами версии.
func (h *VersionHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
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

	version, _, err := h.versionService.GetVersion(r.Context(), versionID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	model, err := h.modelService.GetModel(r.Context(), version.ModelID, identity.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	name := service.ArchiveName(model.Slug, version.Label)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := h.archiveService.StreamVersionArchive(r.Context(), versionID, identity.OrganizationID, w); err != nil {
		// заголовки уже ушли, статус менять поздно
		log.Printf("[HTTP] Archive stream for version %s aborted: %v", versionID, err)
	}
}

// PresignFile выдает временную ссылку на скачивание одного файла.
func (h *VersionHandler) PresignFile(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	url, file, err := h.versionService.PresignFileDownload(r.Context(), fileID, identity.OrganizationID, downloadURLTTL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":        url,
		"filename":   file.OriginalFilename,
		"expires_in": int(downloadURLTTL.Seconds()),
	})
}
