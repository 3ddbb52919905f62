package recordlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

// Extractor reads the My Activity JSON export: a list of activity objects
// with title, time and subtitles fields.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(_ context.Context, archive ports.Archive, category domain.Category) ([]domain.RawInteraction, error) {
	name := category.ExtractionFile()
	if name == "" {
		return nil, domain.WrapError(domain.ErrFormatUnrecognized, "record list extract", fmt.Errorf("category %s has no json file", category.ID))
	}
	raw, err := archive.ReadMember(name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "record list extract", err)
	}

	interactions, skipped, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	for _, entryErr := range skipped {
		e.logger.Warn("record_skipped", "category", category.ID, "error", entryErr)
	}
	e.logger.Debug("records_decoded", "category", category.ID, "records", len(interactions), "skipped", len(skipped))
	return interactions, nil
}

type entry struct {
	Title     json.RawMessage `json:"title"`
	Time      json.RawMessage `json:"time"`
	Subtitles json.RawMessage `json:"subtitles"`
}

type subtitle struct {
	Name string `json:"name"`
}

// Decode parses the activity list. A root that is not a list is a shape
// mismatch; individual bad entries are skipped and reported.
func Decode(raw []byte) ([]domain.RawInteraction, []error, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, nil, domain.WrapError(domain.ErrShapeMismatch, "decode activity list", err)
		}
		return nil, nil, domain.WrapError(domain.ErrRecordParse, "decode activity list", err)
	}

	out := make([]domain.RawInteraction, 0, len(items))
	var skipped []error
	for i, item := range items {
		interaction, err := decodeEntry(item)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		out = append(out, interaction)
	}
	return out, skipped, nil
}

func decodeEntry(item json.RawMessage) (domain.RawInteraction, error) {
	var e entry
	if err := json.Unmarshal(item, &e); err != nil {
		return domain.RawInteraction{}, domain.WrapError(domain.ErrRecordParse, "decode entry", err)
	}

	title, ok := scalarText(e.Title)
	if !ok {
		return domain.RawInteraction{}, domain.WrapError(domain.ErrRecordParse, "decode entry", errors.New("missing title"))
	}
	timestamp, ok := scalarText(e.Time)
	if !ok {
		return domain.RawInteraction{}, domain.WrapError(domain.ErrRecordParse, "decode entry", errors.New("missing time"))
	}

	response, hasResponse := responseText(e.Subtitles)
	return domain.RawInteraction{
		Timestamp:     timestamp,
		Command:       title,
		Response:      response,
		HasResponse:   hasResponse,
		TrailingToken: true,
	}, nil
}

// responseText joins subtitle names. Absent, null and empty lists mean the
// assistant gave no response.
func responseText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", false
		}
		names := make([]string, 0, len(list))
		for _, item := range list {
			var s subtitle
			if err := json.Unmarshal(item, &s); err != nil {
				names = append(names, "")
				continue
			}
			names = append(names, s.Name)
		}
		return strings.Join(names, " "), true
	}

	text, ok := scalarText(raw)
	if !ok {
		return string(raw), true
	}
	return text, true
}

func scalarText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "", false
	}
	return trimmed, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
