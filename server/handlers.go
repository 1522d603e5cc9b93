package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"albumapi/cache"
	"albumapi/core/nested"
	"albumapi/core/serializer"
	"albumapi/db"
	"albumapi/logger"
	"albumapi/repository"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	db          *gorm.DB
	albumRepo   repository.AlbumRepository
	trackRepo   repository.TrackRepository
	albums      *nested.Reconciler
	albumCache  cache.AlbumCache
	trackSchema *serializer.Schema
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(gdb *gorm.DB, albumCache cache.AlbumCache) (*APIHandler, error) {
	albums, err := nested.NewAlbumReconciler(gdb)
	if err != nil {
		return nil, fmt.Errorf("failed to build album reconciler: %w", err)
	}
	if albumCache == nil {
		albumCache = cache.NopAlbumCache{}
	}
	return &APIHandler{
		db:          gdb,
		albumRepo:   repository.NewGormAlbumRepository(gdb),
		trackRepo:   repository.NewGormTrackRepository(gdb),
		albums:      albums,
		albumCache:  albumCache,
		trackSchema: serializer.TrackSchema(),
	}, nil
}

// HealthHandler 健康检查
// Reports whether the store is reachable.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(r.Context(), h.db); err != nil {
		logger.Error("Health check failed", logger.ErrorField(err))
		writeDetail(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodePayload 解析请求体
// An empty body is an empty payload.
func decodePayload(r *http.Request) (serializer.Payload, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return serializer.Payload{}, nil
		}
		return nil, &parseError{err: err}
	}

	obj, ok := serializer.AsObject(raw)
	if !ok {
		return nil, serializer.NewValidationError(serializer.NonFieldErrors,
			fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonType(raw)))
	}
	return obj, nil
}

type parseError struct {
	err error
}

func (e *parseError) Error() string {
	return "JSON parse error - " + e.err.Error()
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeNotFound(w http.ResponseWriter) {
	writeDetail(w, http.StatusNotFound, "Not found.")
}

// writeError 错误响应
// Maps an error from decoding, validation or the store to a status and body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *serializer.ValidationError
	var nferr *nested.NotFoundError
	var perr *parseError

	switch {
	case errors.As(err, &verr):
		logger.Debug("Request rejected by validation",
			logger.String("path", r.URL.Path),
			logger.Any("errors", verr.Fields),
		)
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.As(err, &nferr):
		logger.Warn("Nested child not found",
			logger.String("path", r.URL.Path),
			logger.String("field", nferr.Field),
			logger.Int64("id", nferr.ID),
		)
		writeDetail(w, http.StatusBadRequest, nferr.Error())
	case errors.As(err, &perr):
		writeDetail(w, http.StatusBadRequest, perr.Error())
	case errors.Is(err, nested.ErrNotFound):
		writeNotFound(w)
	default:
		logger.Error("Request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err),
		)
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}
