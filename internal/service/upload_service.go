package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/pkg/config"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type uploadFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type mediaSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	UpdateMedia(ctx context.Context, id string, featuredImage *string, gallery []byte) error
}

// GalleryUpload carries one image stream and its metadata.
type GalleryUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// UploadService validates and stores gallery images for submissions. The
// whole batch is accepted or rejected; files stored before a failure are
// rolled back.
type UploadService struct {
	subs    mediaSubmissionStore
	storage uploadFileStorage
	logger  *zap.Logger
	cfg     config.UploadsConfig
	mimeSet map[string]struct{}
}

// NewUploadService constructs the service.
func NewUploadService(subs mediaSubmissionStore, storage uploadFileStorage, cfg config.UploadsConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 8 * 1024 * 1024
	}
	if cfg.MaxFilesPerItem <= 0 {
		cfg.MaxFilesPerItem = 10
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &UploadService{subs: subs, storage: storage, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// Attach stores the uploaded images against a still actionable submission.
// The first gallery image becomes the featured image when none is set.
func (s *UploadService) Attach(ctx context.Context, submissionID string, uploads []GalleryUpload, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}
	submission, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, appErrors.ErrNotFound
	}
	if !canAccessSubmission(actor, submission.OwnerID) {
		return nil, appErrors.ErrForbidden
	}
	if !submission.Actionable() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already decided")
	}

	var gallery []string
	if len(submission.Gallery) > 0 {
		if err := json.Unmarshal(submission.Gallery, &gallery); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode gallery")
		}
	}
	if len(gallery)+len(uploads) > s.cfg.MaxFilesPerItem {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("gallery is limited to %d files", s.cfg.MaxFilesPerItem))
	}

	saved := make([]string, 0, len(uploads))
	rollback := func() {
		for _, path := range saved {
			if err := s.storage.Delete(path); err != nil {
				s.logger.Warn("failed to remove uploaded file", zap.Error(err), zap.String("path", path))
			}
		}
	}
	for _, upload := range uploads {
		path, err := s.store(submissionID, upload)
		if err != nil {
			rollback()
			return nil, err
		}
		saved = append(saved, path)
	}

	gallery = append(gallery, saved...)
	featured := submission.FeaturedImage
	if featured == nil && len(gallery) > 0 {
		featured = &gallery[0]
	}
	encoded, err := json.Marshal(gallery)
	if err != nil {
		rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode gallery")
	}
	if err := s.subs.UpdateMedia(ctx, submission.ID, featured, encoded); err != nil {
		rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission media")
	}
	submission.FeaturedImage = featured
	submission.Gallery = encoded
	return submission, nil
}

func (s *UploadService) store(submissionID string, upload GalleryUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is empty", upload.Filename))
	}
	if upload.Size > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds %d bytes limit", upload.Filename, s.cfg.MaxFileSizeBytes))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s has unsupported type %s", upload.Filename, mimeType))
	}
	filename := fmt.Sprintf("gallery/%s/%d_%s%s", submissionID, time.Now().Unix(), randomSuffix(), imageExtension(mimeType))
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	return path, nil
}

func (s *UploadService) detectMime(upload GalleryUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func imageExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
