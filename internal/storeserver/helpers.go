package storeserver

import (
	"encoding/json"
	"net/http"

	"github.com/waclient/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

// writeRaw отдаёт уже сериализованный JSON без повторного кодирования.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Errorf("writeRaw: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEmpty — ответ json-server для отсутствующих записей и удаления: {}.
func writeEmpty(w http.ResponseWriter, status int) {
	writeRaw(w, status, []byte("{}"))
}
