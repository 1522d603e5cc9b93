package server

import (
	"net/http"

	"albumapi/logger"
	"albumapi/model"
)

// ListAlbumsHandler 获取所有专辑及其歌曲
func (h *APIHandler) ListAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	if albums, ok := h.albumCache.GetAlbumList(r.Context()); ok {
		writeJSON(w, http.StatusOK, albums)
		return
	}

	albums, err := h.albumRepo.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if albums == nil {
		albums = []*model.Album{}
	}

	h.albumCache.SetAlbumList(r.Context(), albums)
	writeJSON(w, http.StatusOK, albums)
}

// CreateAlbumHandler 创建专辑及其歌曲
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.albums.Create(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	album := rec.(*model.Album)

	h.albumCache.Invalidate(r.Context(), album.ID)
	logger.Info("Album created successfully",
		logger.Int64("albumId", album.ID),
		logger.String("name", album.AlbumName),
		logger.Int("tracks", len(album.Tracks)),
	)
	writeJSON(w, http.StatusCreated, album)
}

// GetAlbumHandler 获取专辑信息
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	if album, ok := h.albumCache.GetAlbum(r.Context(), albumID); ok {
		writeJSON(w, http.StatusOK, album)
		return
	}

	album, err := h.albumRepo.GetByID(r.Context(), albumID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if album == nil {
		logger.Debug("Album not found", logger.Int64("albumId", albumID))
		writeNotFound(w)
		return
	}

	h.albumCache.SetAlbum(r.Context(), album)
	writeJSON(w, http.StatusOK, album)
}

// UpdateAlbumHandler 更新专辑及其歌曲
// PUT: every album field is required.
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	h.updateAlbum(w, r, false)
}

// PartialUpdateAlbumHandler 部分更新专辑及其歌曲
func (h *APIHandler) PartialUpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	h.updateAlbum(w, r, true)
}

func (h *APIHandler) updateAlbum(w http.ResponseWriter, r *http.Request, partial bool) {
	albumID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.albums.Update(r.Context(), albumID, payload, partial)
	if err != nil {
		writeError(w, r, err)
		return
	}
	album := rec.(*model.Album)

	h.albumCache.Invalidate(r.Context(), album.ID)
	logger.Info("Album updated successfully",
		logger.Int64("albumId", album.ID),
		logger.Bool("partial", partial),
	)
	writeJSON(w, http.StatusOK, album)
}

// DeleteAlbumHandler 删除专辑
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	albumID, ok := parseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	deleted, err := h.albumRepo.Delete(r.Context(), albumID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeNotFound(w)
		return
	}

	h.albumCache.Invalidate(r.Context(), albumID)
	logger.Info("Album deleted successfully", logger.Int64("albumId", albumID))
	w.WriteHeader(http.StatusNoContent)
}
