package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"printvault/internal/repository"
	"printvault/internal/service"
)

// writeJSON сериализует ответ. Ошибка кодирования здесь уже не исправима,
// только логируется.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

// writeError переводит ошибку сервиса в HTTP-статус. Внутренние детали
// хранилища и базы наружу не уходят.
func writeError(w http.ResponseWriter, err error) {
	var unsupported *service.UnsupportedTypeError
	var tooLarge *service.FileTooLargeError

	switch {
	case errors.Is(err, service.ErrNotFoundOrDenied):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, service.ErrEmptyUpload):
		http.Error(w, "No files in upload", http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidName):
		http.Error(w, "Invalid name", http.StatusBadRequest)
	case errors.As(err, &unsupported):
		http.Error(w, unsupported.Error(), http.StatusBadRequest)
	case errors.As(err, &tooLarge):
		http.Error(w, tooLarge.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, service.ErrStorageLimit):
		http.Error(w, "Storage limit exceeded", http.StatusInsufficientStorage)
	case errors.Is(err, repository.ErrVersionRace):
		http.Error(w, "Concurrent version update, retry the upload", http.StatusConflict)
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// readUpload вычитывает один файл multipart-формы в память.
func readUpload(fh *multipart.FileHeader) (service.UploadFile, error) {
	file, err := fh.Open()
	if err != nil {
		return service.UploadFile{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.UploadFile{}, err
	}

	return service.UploadFile{
		OriginalName: fh.Filename,
		MIMEType:     fh.Header.Get("Content-Type"),
		Data:         data,
	}, nil
}
