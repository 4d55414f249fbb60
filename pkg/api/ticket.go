package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/relay"
)

// streamStatusInterval is the cadence of snapshots on ?stream=true.
const streamStatusInterval = 500 * time.Millisecond

// GetDownload serves GET /{ticket}: JSON status, streaming status, a
// browser landing page, or a redirect to the named download path.
func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	logger.Debug("Download check", logger.Ticket(ticket))

	meta, err := h.registry.GetFileMetadata(ticket)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	if queryBool(r, "status") {
		writeJSON(w, http.StatusOK, meta.Redact())
		return
	}

	if queryBool(r, "stream") {
		h.streamStatus(w, r, ticket)
		return
	}

	if meta.DownloadLocked() {
		if meta.DownloadFinished() {
			writeError(w, http.StatusGone, "File already downloaded")
			return
		}
		writeError(w, http.StatusConflict, "File being downloaded")
		return
	}

	agent := r.UserAgent()
	if isBrowserAgent(agent) && !queryBool(r, "download") {
		logger.Debug("User agent is web, sending landing", "agent", agent)
		renderDownloadLanding(w, meta)
		return
	}

	target := "/" + ticket + "/" + url.PathEscape(meta.FileName)
	logger.Debug("Redirecting download", logger.Ticket(ticket), logger.Filename(meta.FileName))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// streamStatus writes newline-delimited redacted metadata snapshots until
// the ticket disappears or the client goes away.
func (h *Handler) streamStatus(w http.ResponseWriter, r *http.Request, ticket string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	ticker := time.NewTicker(streamStatusInterval)
	defer ticker.Stop()

	for {
		meta, err := h.registry.GetFileMetadata(ticket)
		if err != nil {
			return
		}
		if err := enc.Encode(meta.Redact()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// MakeUpload serves POST /{ticket}: minting when the path is free, an
// upgrade challenge when it names an existing ticket.
func (h *Handler) MakeUpload(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "ticket")

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	if _, err := h.registry.GetFileMetadata(path); err == nil {
		h.upgrade(w, r, path)
		return
	}

	// New ticket: the path is the file name
	var user *string
	if name := r.PostFormValue("user"); name != "" {
		user = &name
	}

	meta, err := h.registry.Mint(path, user)
	if err != nil {
		logger.Debug("Failed to mint ticket", logger.Filename(path), logger.Err(err))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	logger.Debug("Generated upload ticket", logger.Filename(path), logger.Ticket(meta.Path))
	writeJSON(w, http.StatusOK, meta)
}

// upgrade verifies the challenge response and re-keys the ticket onto the
// authenticated tier.
func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request, ticket string) {
	challenge := r.PostFormValue("challenge")
	if challenge == "" {
		writeError(w, http.StatusBadRequest, "Missing challenge parameter")
		return
	}

	// The field is either a JSON string array or a single armored
	// signature
	var responses []string
	if err := json.Unmarshal([]byte(challenge), &responses); err != nil {
		responses = []string{challenge}
	}

	meta, err := h.registry.Upgrade(ticket, responses)
	if err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, http.StatusUnauthorized, "Challenge failed")
		return
	}

	logger.Debug("Challenge passed", logger.Ticket(meta.Path))
	writeJSON(w, http.StatusOK, meta)
}

// RemoveFile serves DELETE /{ticket}: unconditional teardown.
func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	h.registry.Delete(ticket)
	w.WriteHeader(http.StatusOK)
}

// queryBool parses a boolean query parameter; anything unparsable is
// false.
func queryBool(r *http.Request, name string) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// isBrowserAgent matches the user agents that should see a landing page
// instead of raw bytes.
func isBrowserAgent(agent string) bool {
	return strings.HasPrefix(agent, "Mozilla") || strings.HasPrefix(agent, "WhatsApp")
}
