package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/relay"
)

// Download serves GET /{ticket}/{name}: the payload stream, or the upload
// landing page when the name is actually the upload key.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	name := chi.URLParam(r, "name")
	logger.Debug("Download requested", logger.Ticket(ticket), logger.Filename(name))

	meta, err := h.registry.GetFileMetadata(ticket)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	// A GET on the upload key serves the browser upload form; the actual
	// upload is a POST to the same path.
	if meta.CheckKey(name) {
		renderUploadLanding(w, ticket, name)
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

	consumer, err := h.registry.BeginDownload(ticket)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrNotFound):
			writeError(w, http.StatusNotFound, "File not found")
		case errors.Is(err, relay.ErrGone):
			writeError(w, http.StatusGone, "File already downloaded")
		case errors.Is(err, relay.ErrConflict):
			writeError(w, http.StatusConflict, "File being downloaded")
		default:
			logger.Error("File is unlocked but the stream could not be obtained",
				logger.Ticket(ticket), logger.Err(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	if length, ok := meta.FileSize.ContentLength(); ok {
		logger.Debug("Writing content length", logger.Ticket(ticket), "content_length", length)
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	}
	if meta.Compression != relay.CompressionNone && meta.Compression != "" {
		w.Header().Set("Content-Encoding", meta.Compression.String())
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	h.streamPayload(w, r, ticket, consumer)
}

// streamPayload drains the consumer into the response body until the
// sentinel arrives or a side goes away.
func (h *Handler) streamPayload(w http.ResponseWriter, r *http.Request, ticket string, consumer *relay.Consumer) {
	flusher, _ := w.(http.Flusher)
	sampler := newProgressSampler(h.registry, ticket, false)
	defer sampler.Stop()

	ctx := r.Context()

	for {
		chunk, err := consumer.Recv(ctx)
		if err != nil {
			if errors.Is(err, relay.ErrClosed) {
				// Producer dropped without a sentinel. The body just
				// truncates; the client detects it via Content-Length.
				logger.Warn("Upload side dropped mid-download", logger.Ticket(ticket))
				return
			}

			// Receiver disconnected before the next chunk. Park the
			// consumer so a later GET can resume the drain.
			if !h.registry.ReturnDownload(ticket, consumer) {
				consumer.Close()
			}
			logger.Debug("Download paused", logger.Ticket(ticket), logger.Err(err))
			return
		}

		if len(chunk) == 0 {
			h.registry.End(ticket)
			logger.Info("Download complete", logger.Ticket(ticket), logger.Bytes(sampler.total.Load()))
			return
		}

		if _, err := w.Write(chunk); err != nil {
			// A partial write poisons the stream; resuming would corrupt
			// the byte order, so tear the pipe down instead.
			consumer.Close()
			logger.Warn("Receiver write failed, aborting transfer",
				logger.Ticket(ticket), logger.Err(err))
			return
		}
		sampler.Add(len(chunk))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Upload serves POST /{ticket}/{key}: multipart ingest into the ticket's
// producer.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	key := chi.URLParam(r, "name")

	producer, tier, err := h.registry.BeginUpload(ticket, key)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrNotFound):
			writeError(w, http.StatusNotFound, "File not found")
		case errors.Is(err, relay.ErrConflict):
			writeError(w, http.StatusConflict, "File already uploaded")
		case errors.Is(err, relay.ErrForbidden):
			writeError(w, http.StatusForbidden, "Wrong upload key")
		case errors.Is(err, relay.ErrGone):
			writeError(w, http.StatusGone, "Upload no longer available")
		default:
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Malformed multipart body")
		return
	}

	logger.Debug("Starting upload", logger.Ticket(ticket),
		"block_size", tier.BlockSize, "packet_delay", tier.PacketDelay)

	sampler := newProgressSampler(h.registry, ticket, true)
	defer sampler.Stop()

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("Form data incorrect, did the stream end early?", logger.Err(err))
			writeText(w, http.StatusOK, "Form data incorrect, did the stream end early?")
			return
		}

		switch part.FormName() {
		case "file-size":
			h.setFileSize(ticket, part)
		case "compression":
			h.setCompression(ticket, part)
		default:
			// The first non-metadata field is the payload; nothing after
			// it matters.
			h.relayPayload(r.Context(), w, ticket, part, producer, tier, sampler)
			return
		}
	}

	writeText(w, http.StatusOK, "An error occurred (form has incomplete fields)")
}

// setFileSize applies a sender-declared size. Unparsable values are
// ignored rather than failing the whole upload.
func (h *Handler) setFileSize(ticket string, part io.Reader) {
	raw, err := io.ReadAll(io.LimitReader(part, 64))
	if err != nil {
		logger.Warn("Failed to read file-size field", logger.Ticket(ticket), logger.Err(err))
		return
	}

	size, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || size < 0 {
		logger.Warn("Ignoring unparsable file-size field",
			logger.Ticket(ticket), "value", strings.TrimSpace(string(raw)))
		return
	}

	h.registry.SetMetadata(ticket, nil, &size, nil)
	logger.Debug("Sender set file size", logger.Ticket(ticket), logger.Bytes(size))
}

// setCompression applies a sender-declared compression label. Unknown
// labels are ignored.
func (h *Handler) setCompression(ticket string, part io.Reader) {
	raw, err := io.ReadAll(io.LimitReader(part, 32))
	if err != nil {
		logger.Warn("Failed to read compression field", logger.Ticket(ticket), logger.Err(err))
		return
	}

	compression, err := relay.ParseCompression(strings.TrimSpace(string(raw)))
	if err != nil {
		logger.Warn("Ignoring unknown compression field",
			logger.Ticket(ticket), "value", strings.TrimSpace(string(raw)))
		return
	}

	h.registry.SetMetadata(ticket, nil, nil, &compression)
	logger.Debug("Sender set compression", logger.Ticket(ticket), "compression", compression.String())
}

// relayPayload pushes the payload field through the producer in
// block-sized chunks, pacing per the tier, then enqueues the sentinel.
func (h *Handler) relayPayload(ctx context.Context, w http.ResponseWriter, ticket string, part io.Reader, producer *relay.Producer, tier relay.Tier, sampler *progressSampler) {
	var buffer bytes.Buffer
	readBuf := make([]byte, 32*1024)
	size := 0

	for {
		n, err := part.Read(readBuf)
		if n > 0 {
			size += n
			sampler.Add(n)
			buffer.Write(readBuf[:n])

			// Reassemble network-sized chunks into fixed blocks so
			// pacing throttles bytes per second, not reads per second.
			for buffer.Len() >= tier.BlockSize {
				block := make([]byte, tier.BlockSize)
				_, _ = buffer.Read(block)

				if err := producer.Send(ctx, block); err != nil {
					logger.Error("Failed to send chunk, upload ended prematurely?",
						logger.Ticket(ticket), logger.Err(err))
					writeText(w, http.StatusOK, "Failed to send a chunk... upload may have failed")
					return
				}
				if producer.IsClosed() {
					logger.Error("Upload failed", logger.Ticket(ticket))
					writeText(w, http.StatusOK, "Upload failed")
					return
				}

				if tier.PacketDelay > 0 {
					select {
					case <-time.After(tier.PacketDelay):
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("Payload read failed", logger.Ticket(ticket), logger.Err(err))
			writeText(w, http.StatusOK, "Form data incorrect, did the stream end early?")
			return
		}
	}

	if buffer.Len() > 0 {
		if err := producer.Send(ctx, append([]byte(nil), buffer.Bytes()...)); err != nil {
			logger.Error("Failed to send final chunk", logger.Ticket(ticket), logger.Err(err))
		}
	}
	if err := producer.Send(ctx, []byte{}); err != nil {
		logger.Error("Failed to send close signal", logger.Ticket(ticket), logger.Err(err))
	}

	logger.Info("Upload finished", logger.Ticket(ticket), logger.Bytes(int64(size)))

	if h.registry.EndUpload(ticket) {
		writeText(w, http.StatusOK, fmt.Sprintf("Done! Sent %d bytes", size))
	} else {
		logger.Error("Had an issue marking the upload as ended", logger.Ticket(ticket))
		writeText(w, http.StatusOK, fmt.Sprintf("Done! Sent %d bytes, however the upload failed to be marked as complete", size))
	}
}
