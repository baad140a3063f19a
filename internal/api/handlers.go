package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"vidmerge/internal/artifact"
	"vidmerge/internal/logging"
	"vidmerge/internal/merge"
	"vidmerge/internal/services"
)

const (
	uploadField = "file"
	// kindTooLarge is reported for bodies over the upload cap. It is an HTTP
	// concern, not a pipeline failure, so it has no services.Kind.
	kindTooLarge = "payload_too_large"
	mergeSegment = "merge"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeUploadError(w, r, services.Wrap(services.KindUnreadableMedia, "ingest", "parse", "expected multipart/form-data", err))
		return
	}
	part, err := nextFilePart(reader)
	if err != nil {
		s.writeUploadError(w, r, err)
		return
	}
	defer part.Close()

	id, err := s.videos.Ingest(r.Context(), part)
	if err != nil {
		s.writeUploadError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, IDResponse{ID: string(id)})
}

// nextFilePart skips form fields until the upload field.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.KindUnreadableMedia, "ingest", "parse", "missing file field", nil)
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, services.Wrap(services.KindUnreadableMedia, "ingest", "parse", "malformed multipart body", err)
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		_ = part.Close()
	}
}

// writeUploadError answers oversized bodies with 413 and unreadable media
// with 400; other kinds follow the shared policy.
func (s *Server) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		recordKind(w, kindTooLarge)
		s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			Kind:  kindTooLarge,
		})
	case errors.Is(err, services.KindUnreadableMedia):
		recordKind(w, string(services.KindUnreadableMedia))
		logging.WithContext(r.Context(), s.logger).Info("upload rejected",
			logging.String(logging.FieldEventType, "upload_rejected"),
			logging.Error(err),
		)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid video file",
			Kind:  string(services.KindUnreadableMedia),
		})
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	if raw == mergeSegment {
		s.serveMerge(w, r, nil)
		return
	}
	download, err := s.videos.Fetch(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() {
		if err := download.Close(); err != nil {
			logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "download cleanup failed", "download_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "disk space held until the stale sweep"),
			)
		}
	}()

	file, err := os.Open(download.Path)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.KindInternal, "fetch", "open", "open staged copy", err))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.KindInternal, "fetch", "stat", "stat staged copy", err))
		return
	}

	header := w.Header()
	download.Metadata.Apply(header)
	header.Set("Content-Type", artifact.ContentType)
	header.Set("X-Video-Id", string(download.ID))
	http.ServeContent(w, r, string(download.ID)+".mp4", info.ModTime(), file)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	s.serveMerge(w, r, splitIDs(r.PathValue("ids")))
}

func (s *Server) serveMerge(w http.ResponseWriter, r *http.Request, ids []string) {
	// GET patterns also match HEAD; a merge has side effects, so HEAD is refused.
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := s.merger.Merge(r.Context(), merge.Request{IDs: ids})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, IDResponse{ID: string(result.ID)})
}

// splitIDs turns the captured path remainder into ids. Empty segments from
// doubled or trailing slashes are dropped.
func splitIDs(rest string) []string {
	var ids []string
	for _, segment := range strings.Split(rest, "/") {
		if segment != "" {
			ids = append(ids, segment)
		}
	}
	return ids
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.KindOf(err)
	status := services.HTTPStatus(err)
	recordKind(w, string(kind))
	if !kind.ClientError() {
		logging.WithContext(r.Context(), s.logger).Debug("request failed",
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Error(err),
		)
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	s.writeJSON(w, status, ErrorResponse{Error: services.Reason(err), Kind: string(kind)})
}
