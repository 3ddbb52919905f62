package usecase

import (
	"context"
	"log/slog"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type ExtractTableUseCase struct {
	opener     ports.ArchiveOpener
	extractors map[domain.Format]ports.InteractionExtractor
	normalizer *Normalizer
	observer   ports.FlowObserver
	logger     *slog.Logger
}

func NewExtractTableUseCase(
	opener ports.ArchiveOpener,
	extractors map[domain.Format]ports.InteractionExtractor,
	normalizer *Normalizer,
	observer ports.FlowObserver,
	logger *slog.Logger,
) *ExtractTableUseCase {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractTableUseCase{
		opener:     opener,
		extractors: extractors,
		normalizer: normalizer,
		observer:   observer,
		logger:     logger,
	}
}

// Extract degrades every failure to an empty table; parse problems are only
// visible through logs.
func (uc *ExtractTableUseCase) Extract(ctx context.Context, archiveRef string, validation domain.ValidationResult) domain.Table {
	if !validation.Recognized() {
		return domain.Table{}
	}
	category := *validation.Category

	raw, err := uc.extractRaw(ctx, archiveRef, category)
	if err != nil {
		if domain.IsKind(err, domain.ErrMemberNotFound) {
			uc.logger.Info("extraction_file_missing", "archive", archiveRef, "category", category.ID, "error", err)
		} else {
			uc.logger.Error("extraction_failed", "archive", archiveRef, "category", category.ID, "error", err)
		}
		uc.observe(category.Format, 0)
		return domain.Table{}
	}

	table := uc.normalizer.Normalize(category.Language, raw)
	uc.logger.Info("extraction_complete", "category", category.ID, "records", len(table))
	uc.observe(category.Format, len(table))
	return table
}

func (uc *ExtractTableUseCase) extractRaw(ctx context.Context, archiveRef string, category domain.Category) ([]domain.RawInteraction, error) {
	extractor, ok := uc.extractors[category.Format]
	if !ok {
		return nil, domain.WrapError(domain.ErrFormatUnrecognized, "select extractor", errUnsupportedFormat(category.Format))
	}

	archive, err := uc.opener.Open(ctx, archiveRef)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "open archive", err)
	}
	defer archive.Close()

	return extractor.Extract(ctx, archive, category)
}

func (uc *ExtractTableUseCase) observe(format domain.Format, records int) {
	if uc.observer != nil {
		uc.observer.ObserveExtraction(format, records)
	}
}

type errUnsupportedFormat domain.Format

func (e errUnsupportedFormat) Error() string {
	return "no extractor for format " + string(e)
}
