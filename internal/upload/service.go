// Package upload implements the file ingestion policy: extension whitelist, size
// ceiling, image normalization and persistence of the resulting StoredFile.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/config"
	"github.com/aura-webinar/venue/internal/media"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/pkg/storage"
)

// File is an uploaded file as received from the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Size        int64
}

// Options carries the optional resize request as sent by the client.
type Options struct {
	Width  string
	Height string
}

// BlobStore stores file content and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte, public bool) (string, error)
	Delete(ctx context.Context, key string) error
}

// FileRepository persists file metadata.
type FileRepository interface {
	Create(ctx context.Context, f *models.StoredFile) error
}

// ImageNormalizer validates and rewrites raster images.
type ImageNormalizer interface {
	Normalize(data []byte, box *media.Box) (*media.Result, error)
}

// ScheduleConverter turns a schedule workbook into JSON.
type ScheduleConverter interface {
	Convert(r io.Reader, timezone string) ([]byte, error)
}

// ScheduleNotifier is told, after commit, that a world got a new schedule.
type ScheduleNotifier interface {
	ScheduleChanged(ctx context.Context, world *models.World, file *models.StoredFile)
}

// Service applies the upload policy.
type Service struct {
	cfg        config.UploadConfig
	normalizer ImageNormalizer
	blobs      BlobStore
	files      FileRepository
	converter  ScheduleConverter
	notifier   ScheduleNotifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an upload service.
func NewService(cfg config.UploadConfig, normalizer ImageNormalizer, blobs BlobStore, files FileRepository,
	converter ScheduleConverter, notifier ScheduleNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		normalizer: normalizer,
		blobs:      blobs,
		files:      files,
		converter:  converter,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest validates f, normalizes raster images and stores the result as a public file
// owned by the principal. The size ceiling applies to the normalized payload.
func (s *Service) Ingest(ctx context.Context, principal *models.Principal, world *models.World, f File, opts Options) (*models.StoredFile, error) {
	ext := extension(f.Name)
	if !contains(s.cfg.AllowedExtensions, ext) {
		return nil, ErrTypeNotAllowed
	}

	contentType, data, size := f.ContentType, f.Data, f.Size
	if contains(s.cfg.ImageExtensions, ext) {
		box, err := media.ParseBox(opts.Width, opts.Height, s.cfg.BestEffortResize)
		if err != nil {
			return nil, ErrInvalidPicture
		}
		res, err := s.normalizer.Normalize(f.Data, box)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				return nil, ErrInvalidPicture
			}
			return nil, err
		}
		contentType, data, size = res.ContentType, res.Data, res.Size
	}

	if size > s.cfg.MaxSize {
		return nil, ErrSizeExceeded
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.store(ctx, principal, world, path.Base(f.Name), contentType, data, size)
}

// IngestSchedule converts a schedule workbook and stores the JSON document. Unlike
// Ingest, the size ceiling is checked before the extension.
func (s *Service) IngestSchedule(ctx context.Context, principal *models.Principal, world *models.World, f File) (*models.StoredFile, error) {
	if f.Size > s.cfg.ScheduleMaxSize {
		return nil, ErrSizeExceeded
	}
	if !contains(s.cfg.ScheduleExtensions, extension(f.Name)) {
		return nil, ErrTypeNotAllowed
	}

	doc, err := s.converter.Convert(bytes.NewReader(f.Data), world.Timezone)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}

	name := fmt.Sprintf("schedule_%s.json", s.now().UTC().Format("2006-01-02-15-04-05"))
	sf, err := s.store(ctx, principal, world, name, "application/json", doc, int64(len(doc)))
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ScheduleChanged(ctx, world, sf)
	}
	return sf, nil
}

func (s *Service) store(ctx context.Context, principal *models.Principal, world *models.World,
	filename, contentType string, data []byte, size int64) (*models.StoredFile, error) {
	sf := &models.StoredFile{
		ID:       uuid.New(),
		WorldID:  world.ID,
		UserID:   principal.UserID,
		Filename: filename,
		Type:     contentType,
		Size:     size,
		Public:   true,
	}
	sf.Key = storage.FileKey(world.ID.String(), sf.ID.String(), filename)

	url, err := s.blobs.Put(ctx, sf.Key, contentType, data, sf.Public)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	sf.URL = url

	if err := s.files.Create(ctx, sf); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), sf.Key); delErr != nil {
			s.logger.Warn("orphaned object after failed insert", zap.Error(delErr), zap.String("key", sf.Key))
		}
		return nil, fmt.Errorf("create stored file: %w", err)
	}
	s.logger.Info("file stored",
		zap.String("file_id", sf.ID.String()),
		zap.String("world_id", world.ID.String()),
		zap.String("type", contentType),
		zap.Int64("size", size),
	)
	return sf, nil
}

// ConversionError wraps a schedule converter failure; its message is shown to the uploader.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return e.Err.Error() }
func (e *ConversionError) Unwrap() error { return e.Err }

// checkDeclaredSize rejects a file whose multipart size already exceeds the ceiling it
// will be held to. Images are exempt since normalization can shrink them.
func (s *Service) checkDeclaredSize(name string, size int64, schedule bool) error {
	switch {
	case schedule && size > s.cfg.ScheduleMaxSize:
		return ErrSizeExceeded
	case !schedule && size > s.cfg.MaxSize && !contains(s.cfg.ImageExtensions, extension(name)):
		return ErrSizeExceeded
	}
	return nil
}

func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
