package server

import (
	"fmt"
	"net/http"
	"strconv"

	"albumapi/core/serializer"
	"albumapi/logger"
	"albumapi/model"
)

// ListTracksHandler 获取所有歌曲
func (h *APIHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// CreateTrackHandler 创建歌曲
// The owning album comes from the "album" query parameter. An "album" key
// in the body is ignored.
func (h *APIHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	albumID, err := h.albumFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	validated, err := h.trackSchema.Validate(payload, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	track := &model.Track{}
	if err := h.trackSchema.Decode(validated, track); err != nil {
		writeError(w, r, err)
		return
	}
	track.AlbumID = albumID

	if err := h.trackRepo.Create(r.Context(), track); err != nil {
		writeError(w, r, err)
		return
	}

	h.albumCache.Invalidate(r.Context(), albumID)
	logger.Info("Track created successfully",
		logger.Int64("trackId", track.ID),
		logger.Int64("albumId", albumID),
	)
	writeJSON(w, http.StatusCreated, track)
}

func (h *APIHandler) albumFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("album")
	if raw == "" {
		return 0, serializer.NewValidationError("album", "This field is required.")
	}
	albumID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, serializer.NewValidationError("album",
			fmt.Sprintf("Incorrect type. Expected pk value, received %q.", raw))
	}
	exists, err := h.trackRepo.AlbumExists(r.Context(), albumID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, serializer.NewValidationError("album",
			fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", albumID))
	}
	return albumID, nil
}

// GetTrackHandler 获取歌曲信息
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	track, err := h.trackRepo.GetByID(r.Context(), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if track == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// UpdateTrackHandler 更新歌曲 (PUT)
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.updateTrack(w, r, false)
}

// PartialUpdateTrackHandler 部分更新歌曲 (PATCH)
func (h *APIHandler) PartialUpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.updateTrack(w, r, true)
}

// updateTrack 更新歌曲
// The album reference is read-only and never written here.
func (h *APIHandler) updateTrack(w http.ResponseWriter, r *http.Request, partial bool) {
	trackID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	existing, err := h.trackRepo.GetByID(r.Context(), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing == nil {
		writeNotFound(w)
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	validated, err := h.trackSchema.Validate(payload, partial)
	if err != nil {
		writeError(w, r, err)
		return
	}

	track, err := h.trackRepo.Update(r.Context(), trackID, h.trackSchema.Columns(validated))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if track == nil {
		writeNotFound(w)
		return
	}

	h.albumCache.Invalidate(r.Context(), track.AlbumID)
	logger.Info("Track updated successfully",
		logger.Int64("trackId", trackID),
		logger.Bool("partial", partial),
	)
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler 删除歌曲
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	track, err := h.trackRepo.GetByID(r.Context(), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if track == nil {
		writeNotFound(w)
		return
	}

	if _, err := h.trackRepo.Delete(r.Context(), trackID); err != nil {
		writeError(w, r, err)
		return
	}

	h.albumCache.Invalidate(r.Context(), track.AlbumID)
	logger.Info("Track deleted successfully", logger.Int64("trackId", trackID))
	w.WriteHeader(http.StatusNoContent)
}
