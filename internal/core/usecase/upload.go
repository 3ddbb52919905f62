package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type UploadArchiveUseCase struct {
	storage ports.ObjectStorage
}

func NewUploadArchiveUseCase(storage ports.ObjectStorage) *UploadArchiveUseCase {
	return &UploadArchiveUseCase{storage: storage}
}

// Upload stores the archive and returns the key hosts send back as the
// file prompt's string payload.
func (uc *UploadArchiveUseCase) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, key, body); err != nil {
		return "", fmt.Errorf("save to object storage: %w", err)
	}
	return key, nil
}

// Discard removes a stored archive once the host no longer needs it.
func (uc *UploadArchiveUseCase) Discard(ctx context.Context, key string) error {
	if err := uc.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete from object storage: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "archive.zip"
	}
	return base
}
