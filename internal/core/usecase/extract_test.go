package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type interactionExtractorFake struct {
	raw      []domain.RawInteraction
	err      error
	category domain.Category
}

func (f *interactionExtractorFake) Extract(_ context.Context, _ ports.Archive, category domain.Category) ([]domain.RawInteraction, error) {
	f.category = category
	return f.raw, f.err
}

type extractionObserverFake struct {
	observerFake
	format  domain.Format
	records int
	calls   int
}

func (f *extractionObserverFake) ObserveExtraction(format domain.Format, records int) {
	f.format = format
	f.records = records
	f.calls++
}

func TestExtractNormalizesRecognizedArchive(t *testing.T) {
	archive := newArchiveFake(nil, "MijnActiviteit.html")
	markup := &interactionExtractorFake{raw: []domain.RawInteraction{
		{Timestamp: "1 jan. 2023, 10:00:00 CET", Command: "Je hebt hallo", HasResponse: false},
	}}
	observer := &extractionObserverFake{}
	uc := NewExtractTableUseCase(
		&openerFake{archives: map[string]*archiveFake{"a.zip": archive}},
		map[domain.Format]ports.InteractionExtractor{domain.FormatMarkup: markup},
		nil, observer, nil,
	)

	table := uc.Extract(context.Background(), "a.zip", domain.ValidationResult{
		Status:   domain.StatusRecognized,
		Category: &domain.Category{ID: "html_nl", Format: domain.FormatMarkup, Language: domain.LanguageNL},
	})

	if len(table) != 1 {
		t.Fatalf("expected 1 record, got %d", len(table))
	}
	if table[0].Command != "hallo" || table[0].Response != "Geen reactie" {
		t.Fatalf("unexpected record %+v", table[0])
	}
	if markup.category.ID != "html_nl" {
		t.Fatalf("extractor received wrong category %q", markup.category.ID)
	}
	if observer.calls != 1 || observer.records != 1 || observer.format != domain.FormatMarkup {
		t.Fatalf("unexpected observation %+v", observer)
	}
	if !archive.closed {
		t.Fatalf("expected archive to be closed")
	}
}

func TestExtractDegradesToEmptyTable(t *testing.T) {
	recognized := domain.ValidationResult{
		Status:   domain.StatusRecognized,
		Category: &domain.Category{ID: "json_de", Format: domain.FormatRecordList, Language: domain.LanguageDE},
	}

	tests := []struct {
		name       string
		opener     *openerFake
		extractors map[domain.Format]ports.InteractionExtractor
		validation domain.ValidationResult
	}{
		{
			name:       "not recognized",
			opener:     &openerFake{},
			validation: domain.ValidationResult{Status: domain.StatusRecognizedUnhandled},
		},
		{
			name:       "no extractor for format",
			opener:     &openerFake{archives: map[string]*archiveFake{"a.zip": newArchiveFake(nil)}},
			extractors: map[domain.Format]ports.InteractionExtractor{},
			validation: recognized,
		},
		{
			name:   "extractor failure",
			opener: &openerFake{archives: map[string]*archiveFake{"a.zip": newArchiveFake(nil)}},
			extractors: map[domain.Format]ports.InteractionExtractor{
				domain.FormatRecordList: &interactionExtractorFake{err: domain.WrapError(domain.ErrShapeMismatch, "decode", errors.New("not a list"))},
			},
			validation: recognized,
		},
		{
			name:       "archive vanished",
			opener:     &openerFake{err: errors.New("gone")},
			extractors: map[domain.Format]ports.InteractionExtractor{},
			validation: recognized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			uc := NewExtractTableUseCase(tc.opener, tc.extractors, nil, nil, nil)
			table := uc.Extract(context.Background(), "a.zip", tc.validation)
			if table == nil || !table.Empty() {
				t.Fatalf("expected empty non-nil table, got %v", table)
			}
		})
	}
}

func TestExtractMissingMemberLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	missing := domain.WrapError(domain.ErrMemberNotFound, "read member", fmt.Errorf("%q", "MeineAktivitäten.json"))
	uc := NewExtractTableUseCase(
		&openerFake{archives: map[string]*archiveFake{"a.zip": newArchiveFake(nil)}},
		map[domain.Format]ports.InteractionExtractor{
			domain.FormatRecordList: &interactionExtractorFake{err: missing},
		},
		nil, nil, logger,
	)

	table := uc.Extract(context.Background(), "a.zip", domain.ValidationResult{
		Status:   domain.StatusRecognized,
		Category: &domain.Category{ID: "json_de", Format: domain.FormatRecordList, Language: domain.LanguageDE},
	})

	if !table.Empty() {
		t.Fatalf("expected empty table, got %v", table)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"extraction_file_missing"`) || !strings.Contains(out, `"level":"INFO"`) {
		t.Fatalf("expected info-level missing-file log, got %s", out)
	}
	if strings.Contains(out, "extraction_failed") {
		t.Fatalf("missing member must not be logged as a failure: %s", out)
	}
}
