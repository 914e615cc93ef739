package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"civicconnect.org/internal/audit"
	"civicconnect.org/internal/media"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// handleUpload stores the raw request body under the caller's folder.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.media == nil {
		writeError(w, r, http.StatusServiceUnavailable, "media storage disabled")
		return
	}
	p, _ := principal(r)
	folder := media.DefaultFolder + "/" + p.Identity.ID
	url, err := a.media.Put(r.Context(), folder, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			writeError(w, r, http.StatusUnsupportedMediaType, err.Error())
		case errors.As(err, &maxErr):
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
		default:
			a.log.Error().Err(err).Msg("media upload failed")
			writeError(w, r, http.StatusBadGateway, "upload failed")
		}
		return
	}
	_ = audit.LogEvent(r.Context(), "media.uploaded", map[string]any{"url": url})
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

func (a *API) serveMedia(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/media/")
	obj, ok := a.mediaFiles.Get(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(obj.Data)
}
