package photo

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

// Backend is the part of the API client the uploader needs.
type Backend interface {
	PresignFeedbackPhotos(ctx context.Context, fileNames []string) ([]api.PresignedPhoto, error)
	PutObject(ctx context.Context, presignedURL, contentType string, data []byte) error
}

// Uploader pushes staged files to storage and returns their storage keys in
// input order. Any single failure aborts the whole upload; files already
// written are not rolled back.
type Uploader struct {
	backend     Backend
	concurrency int
	logger      *slog.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithConcurrency uploads up to n files at once. n <= 1 uploads one by one.
func WithConcurrency(n int) UploaderOption {
	return func(u *Uploader) {
		u.concurrency = n
	}
}

// WithLogger sets the uploader's logger.
func WithLogger(l *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader returns an Uploader over backend.
func NewUploader(backend Backend, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		backend:     backend,
		concurrency: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload uploads files and returns one storage key per file.
func (u *Uploader) Upload(ctx context.Context, files []survey.PhotoFile) ([]string, error) {
	keys := make([]string, len(files))
	if len(files) == 0 {
		return keys, nil
	}

	if u.concurrency <= 1 {
		for i, f := range files {
			key, err := u.uploadOne(ctx, f)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		return keys, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, f := range files {
		g.Go(func() error {
			key, err := u.uploadOne(gctx, f)
			if err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (u *Uploader) uploadOne(ctx context.Context, f survey.PhotoFile) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("photo: read %s: %w", f.Name, err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = baseType(mimetype.Detect(data).String())
	}

	targets, err := u.backend.PresignFeedbackPhotos(ctx, []string{f.Name})
	if err != nil {
		return "", fmt.Errorf("photo: presign %s: %w", f.Name, err)
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("photo: presign %s: no upload target returned", f.Name)
	}
	target := targets[0]

	if err := u.backend.PutObject(ctx, target.PresignedURL, contentType, data); err != nil {
		return "", fmt.Errorf("photo: upload %s: %w", f.Name, err)
	}
	u.logger.Debug("photo uploaded", "file", f.Name, "key", target.S3Key, "bytes", len(data))
	return target.S3Key, nil
}
