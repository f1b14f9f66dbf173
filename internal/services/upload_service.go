package services

import (
	"context"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"go.uber.org/zap"
)

// UploadService stores client files in blob storage.
type UploadService struct {
	store    storage.BlobStore
	metrics  *metrics.Metrics
	maxBytes int64
	maxDim   int
	log      *zap.Logger
}

// NewUploadService creates a new UploadService
func NewUploadService(store storage.BlobStore, m *metrics.Metrics, maxBytes int64, maxDim int, log *zap.Logger) *UploadService {
	return &UploadService{store: store, metrics: m, maxBytes: maxBytes, maxDim: maxDim, log: log.Named("uploads")}
}

// MaxBytes is the largest accepted payload.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload stores data under a randomized key derived from filename and
// returns its public URL. Oversized images are downscaled first.
func (s *UploadService) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", ErrMissingFilename
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		s.metrics.Uploads.WithLabelValues("too_large").Inc()
		return "", ErrPayloadTooLarge
	}

	if storage.IsImage(filename) {
		resized, changed, err := storage.Downscale(data, filename, s.maxDim)
		switch {
		case err != nil:
			s.log.Debug("not re-encoding upload", zap.String("filename", filename), zap.Error(err))
		case changed:
			data = resized
		}
	}

	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(filename)); byExt != "" {
			contentType = byExt
		} else {
			contentType = http.DetectContentType(data)
		}
	}

	url, err := s.store.Put(ctx, storage.ObjectKey(filename), contentType, data)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("error").Inc()
		return "", err
	}
	s.metrics.Uploads.WithLabelValues("ok").Inc()
	return url, nil
}
