package usecase

import (
	"context"
	"log/slog"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type ValidateArchiveUseCase struct {
	opener   ports.ArchiveOpener
	registry ports.CategoryRegistry
	logger   *slog.Logger
}

func NewValidateArchiveUseCase(opener ports.ArchiveOpener, registry ports.CategoryRegistry, logger *slog.Logger) *ValidateArchiveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateArchiveUseCase{
		opener:   opener,
		registry: registry,
		logger:   logger,
	}
}

// Validate never fails: unreadable containers become StatusMalformedArchive.
func (uc *ValidateArchiveUseCase) Validate(ctx context.Context, archiveRef string) domain.ValidationResult {
	names, err := uc.listNames(ctx, archiveRef)
	if err != nil {
		uc.logger.Warn("archive_unreadable", "archive", archiveRef, "error", err)
		return domain.ValidationResult{Status: domain.StatusMalformedArchive}
	}

	candidates := candidateFileNames(names)

	category, ok := InferCategory(uc.registry.Categories(), candidates)
	if !ok {
		uc.logger.Info("archive_unrecognized", "archive", archiveRef, "candidates", len(candidates))
		return domain.ValidationResult{Status: domain.StatusRecognizedUnhandled, Members: candidates}
	}

	uc.logger.Info("archive_recognized", "archive", archiveRef, "category", category.ID)
	return domain.ValidationResult{Status: domain.StatusRecognized, Category: &category, Members: candidates}
}

func (uc *ValidateArchiveUseCase) listNames(ctx context.Context, archiveRef string) ([]string, error) {
	archive, err := uc.opener.Open(ctx, archiveRef)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "open archive", err)
	}
	defer archive.Close()
	return archive.Names(), nil
}
