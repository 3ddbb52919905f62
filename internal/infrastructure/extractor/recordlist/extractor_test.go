package recordlist

import (
	"context"
	"errors"
	"testing"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/usecase"
)

const activityJSON = `[
  {"header": "Assistent", "title": "Wie wird das Wetter morgen gesagt", "time": "2023-03-04T08:09:10.123Z",
   "subtitles": [{"name": "Morgen wird es sonnig"}, {"name": "bei 18 Grad"}]},
  {"header": "Assistent", "title": "Licht aus gesagt", "time": "2023-03-04T22:00:00Z"},
  {"header": "Assistent", "title": "Timer gesagt", "time": "2023-03-05T07:00:00Z", "subtitles": []},
  {"header": "Assistent", "time": "2023-03-05T07:30:00Z"},
  "not an object"
]`

type memberArchive map[string]string

func (a memberArchive) Names() []string { return nil }

func (a memberArchive) ReadMember(name string) ([]byte, error) {
	body, ok := a[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return []byte(body), nil
}

func (a memberArchive) Close() error { return nil }

func TestDecodeActivityList(t *testing.T) {
	got, skipped, err := Decode([]byte(activityJSON))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(got))
	}
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped entries, got %v", skipped)
	}

	first := got[0]
	if first.Command != "Wie wird das Wetter morgen gesagt" || !first.TrailingToken {
		t.Fatalf("unexpected command %+v", first)
	}
	if !first.HasResponse || first.Response != "Morgen wird es sonnig bei 18 Grad" {
		t.Fatalf("unexpected response %q", first.Response)
	}
	if first.Timestamp != "2023-03-04T08:09:10.123Z" {
		t.Fatalf("timestamp must be left for normalization, got %q", first.Timestamp)
	}
	if got[1].HasResponse {
		t.Fatalf("absent subtitles must mean no response")
	}
	if got[2].HasResponse {
		t.Fatalf("empty subtitles must mean no response")
	}
}

func TestDecodeRejectsNonListRoot(t *testing.T) {
	_, _, err := Decode([]byte(`{"title": "x"}`))
	if !domain.IsKind(err, domain.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}

	_, _, err = Decode([]byte(`[{"title": `))
	if !domain.IsKind(err, domain.ErrRecordParse) {
		t.Fatalf("expected record parse error, got %v", err)
	}
}

func TestExtractReadsDataFile(t *testing.T) {
	category := domain.Category{
		ID: "json_de", Format: domain.FormatRecordList, Language: domain.LanguageDE,
		KnownFiles: []string{"Archiv_Übersicht.html", "MeineAktivitäten.json"},
	}
	archive := memberArchive{"MeineAktivitäten.json": activityJSON}

	got, err := New(nil).Extract(context.Background(), archive, category)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(got))
	}
}

func TestExtractEmptyList(t *testing.T) {
	category := domain.Category{ID: "json_nl", Format: domain.FormatRecordList, DataFile: "MyActivity.json"}

	got, err := New(nil).Extract(context.Background(), memberArchive{"MyActivity.json": "[]"}, category)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no interactions, got %v", got)
	}
}

func TestExtractAndNormalizeSingleInteraction(t *testing.T) {
	archive := memberArchive{"MyActivity.json": `[{"title":"Turn on the lights said","time":"2023-01-01T10:00:00.000Z","subtitles":[{"name":"Lights on"}]}]`}
	category := domain.Category{ID: "json_en", Format: domain.FormatRecordList, Language: domain.LanguageEN, DataFile: "MyActivity.json"}

	raw, err := New(nil).Extract(context.Background(), archive, category)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	table := usecase.NewNormalizer(nil).Normalize(category.Language, raw)

	want := domain.NormalizedRecord{Timestamp: "2023-01-01, 10:00:00", Command: "Turn on the lights", Response: "Lights on"}
	if len(table) != 1 || table[0] != want {
		t.Fatalf("expected [%+v], got %+v", want, table)
	}
}
