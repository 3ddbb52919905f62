package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/observability/logging"
)

type donationCall struct {
	sessionID string
	key       string
	payload   string
}

type sinkFake struct {
	calls []donationCall
	err   error
}

func (f *sinkFake) Donate(_ context.Context, sessionID, key, payload string) error {
	f.calls = append(f.calls, donationCall{sessionID: sessionID, key: key, payload: payload})
	return f.err
}

func (f *sinkFake) keys() []string {
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.key)
	}
	return out
}

// dataKeys drops the tracking snapshots, which are emitted at every step.
func (f *sinkFake) dataKeys() []string {
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		if strings.HasSuffix(call.key, "-tracking") {
			continue
		}
		out = append(out, call.key)
	}
	return out
}

type validatorFake struct {
	results map[string]domain.ValidationResult
	seen    []string
}

func (f *validatorFake) Validate(_ context.Context, ref string) domain.ValidationResult {
	f.seen = append(f.seen, ref)
	if result, ok := f.results[ref]; ok {
		return result
	}
	return domain.ValidationResult{Status: domain.StatusMalformedArchive}
}

type tableExtractorFake struct {
	table domain.Table
	calls int
}

func (f *tableExtractorFake) Extract(context.Context, string, domain.ValidationResult) domain.Table {
	f.calls++
	return f.table
}

type discarderFake struct {
	discarded []string
	err       error
}

func (f *discarderFake) Discard(_ context.Context, key string) error {
	f.discarded = append(f.discarded, key)
	return f.err
}

type observerFake struct {
	started     int
	validations []domain.ValidationStatus
	donations   map[string]int
	outcome     string
}

func (f *observerFake) ObserveFlowStarted() { f.started++ }

func (f *observerFake) ObserveValidation(status domain.ValidationStatus) {
	f.validations = append(f.validations, status)
}

func (f *observerFake) ObserveExtraction(domain.Format, int) {}

func (f *observerFake) ObserveDonation(kind string) {
	if f.donations == nil {
		f.donations = map[string]int{}
	}
	f.donations[kind]++
}

func (f *observerFake) ObserveFlowFinished(outcome string) { f.outcome = outcome }

// hostFake answers each render with the next scripted response and records
// every command it was asked to render.
type hostFake struct {
	responses []domain.Response
	rendered  []domain.Command
}

func (h *hostFake) Render(_ context.Context, cmd domain.Command) (domain.Response, error) {
	h.rendered = append(h.rendered, cmd)
	if len(h.responses) == 0 {
		return domain.PayloadVoid{}, nil
	}
	next := h.responses[0]
	h.responses = h.responses[1:]
	return next, nil
}

func (h *hostFake) countPrompts(match func(domain.PromptBody) bool) int {
	count := 0
	for _, cmd := range h.rendered {
		render, ok := cmd.(domain.RenderCommand)
		if !ok {
			continue
		}
		page, ok := render.Page.(domain.DonationPage)
		if ok && match(page.Body) {
			count++
		}
	}
	return count
}

func isFilePrompt(body domain.PromptBody) bool {
	_, ok := body.(domain.FileInputPrompt)
	return ok
}

func isRetryPrompt(body domain.PromptBody) bool {
	_, ok := body.(domain.ConfirmPrompt)
	return ok
}

func isConsentPrompt(body domain.PromptBody) bool {
	_, ok := body.(domain.ConsentFormPrompt)
	return ok
}

var recognizedHTML = domain.ValidationResult{
	Status:   domain.StatusRecognized,
	Category: &domain.Category{ID: "html_nl", Format: domain.FormatMarkup, Language: domain.LanguageNL},
}

var sampleTable = domain.Table{
	{Timestamp: "2023-01-01, 10:00:00", Command: "zet de lamp aan", Response: "Oké"},
}

type flowFixture struct {
	sink      *sinkFake
	validator *validatorFake
	extractor *tableExtractorFake
	observer  *observerFake
	archives  *discarderFake
	telemetry *logging.SessionLog
}

func newFlowFixture(table domain.Table) *flowFixture {
	return &flowFixture{
		sink: &sinkFake{},
		validator: &validatorFake{results: map[string]domain.ValidationResult{
			"good.zip": recognizedHTML,
			"bad.zip":  {Status: domain.StatusRecognizedUnhandled},
		}},
		extractor: &tableExtractorFake{table: table},
		observer:  &observerFake{},
		archives:  &discarderFake{},
		telemetry: logging.NewSessionLog("script", slog.LevelDebug),
	}
}

func (fx *flowFixture) flow(opts FlowOptions) *Flow {
	return NewFlow("s1", FlowDeps{
		Platforms: []Platform{{Name: "Google Home", Validator: fx.validator, Extractor: fx.extractor}},
		Sink:      fx.sink,
		Observer:  fx.observer,
		Archives:  fx.archives,
		Telemetry: fx.telemetry,
	}, opts)
}

func assertKeys(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, got)
		}
	}
}

func TestFlowRetryThenDonate(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "bad.zip"},
		domain.PayloadTrue{},
		domain.PayloadString{Value: "good.zip"},
		domain.PayloadJSON{Value: `{"google_home_interactions":[]}`},
		domain.PayloadJSON{Value: `{"1":"fine"}`},
	}}
	flow := fx.flow(DefaultFlowOptions())

	if err := Drive(context.Background(), flow, host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}

	if got := host.countPrompts(isFilePrompt); got != 2 {
		t.Fatalf("expected 2 file prompts, got %d", got)
	}
	if got := host.countPrompts(isRetryPrompt); got != 1 {
		t.Fatalf("expected 1 retry prompt, got %d", got)
	}
	if got := host.countPrompts(isConsentPrompt); got != 1 {
		t.Fatalf("expected 1 consent prompt, got %d", got)
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("expected a single extraction, got %d", fx.extractor.calls)
	}

	assertKeys(t, fx.sink.dataKeys(), []string{
		"Google Home",
		"s1-Google Home-status",
		"s1-Google Home-questionnaire-donation",
	})
	if first := fx.sink.keys()[0]; first != "s1-tracking" {
		t.Fatalf("expected first donation to be tracking, got %s", first)
	}
	for _, call := range fx.sink.calls {
		if call.key == "s1-Google Home-status" && !strings.Contains(call.payload, `"status":"donated"`) {
			t.Fatalf("unexpected status payload %s", call.payload)
		}
	}

	if flow.State() != StateEnd {
		t.Fatalf("expected end state, got %s", flow.State())
	}
	if fx.observer.outcome != OutcomeDonated {
		t.Fatalf("expected donated outcome, got %s", fx.observer.outcome)
	}
	if len(fx.observer.validations) != 2 {
		t.Fatalf("expected 2 validations, got %v", fx.observer.validations)
	}
}

func TestFlowTrackingSnapshotsGrow(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{domain.PayloadVoid{}}}

	if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}

	calls := fx.sink.calls
	if len(calls) < 2 {
		t.Fatalf("expected several tracking donations, got %d", len(calls))
	}
	if !strings.Contains(calls[0].payload, "Starting the donation flow") {
		t.Fatalf("expected start message in first snapshot, got %s", calls[0].payload)
	}
	if strings.Contains(calls[0].payload, "Prompt for file") {
		t.Fatalf("first snapshot must not contain later messages: %s", calls[0].payload)
	}
	last := calls[len(calls)-1].payload
	if !strings.Contains(last, "Skipped") || !strings.Contains(last, " --- script --- INFO --- ") {
		t.Fatalf("unexpected final snapshot %s", last)
	}
}

func TestFlowDeclineUsesNoDonationQuestionnaire(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "good.zip"},
		domain.PayloadFalse{},
		domain.PayloadVoid{},
	}}

	if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}

	assertKeys(t, fx.sink.dataKeys(), []string{"s1-Google Home-status"})
	if !strings.Contains(fx.sink.calls[len(fx.sink.calls)-2].payload, "Skipped questionnaire no donation") &&
		!strings.Contains(fx.sink.calls[len(fx.sink.calls)-1].payload, "Skipped questionnaire no donation") {
		t.Fatalf("expected skipped questionnaire telemetry")
	}
	for _, call := range fx.sink.calls {
		if call.key == "s1-Google Home-status" && !strings.Contains(call.payload, `"status":"declined"`) {
			t.Fatalf("unexpected status payload %s", call.payload)
		}
	}

	var questionnairePage *domain.QuestionnairePrompt
	for _, cmd := range host.rendered {
		if render, ok := cmd.(domain.RenderCommand); ok {
			if page, ok := render.Page.(domain.DonationPage); ok {
				if q, ok := page.Body.(domain.QuestionnairePrompt); ok {
					questionnairePage = &q
				}
			}
		}
	}
	if questionnairePage == nil {
		t.Fatalf("expected questionnaire to be rendered")
	}
	if len(questionnairePage.Questions) != 6 {
		t.Fatalf("expected 6 questions for declined flow, got %d", len(questionnairePage.Questions))
	}
	if fx.observer.outcome != OutcomeDeclined {
		t.Fatalf("expected declined outcome, got %s", fx.observer.outcome)
	}
}

func TestFlowDeclinedQuestionnaireAnswerUsesNoDonationKey(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "good.zip"},
		domain.PayloadFalse{},
		domain.PayloadJSON{Value: `{"6":"privacy"}`},
	}}
	opts := DefaultFlowOptions()
	opts.EmitStatusEvents = false

	if err := Drive(context.Background(), fx.flow(opts), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}
	assertKeys(t, fx.sink.dataKeys(), []string{"s1-Google Home-questionnaire-no-donation"})
}

func TestFlowEmptyTableShowsPlaceholder(t *testing.T) {
	fx := newFlowFixture(domain.Table{})
	flow := fx.flow(DefaultFlowOptions())
	ctx := context.Background()

	if _, err := flow.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cmd, err := flow.Resume(ctx, domain.PayloadString{Value: "good.zip"})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	page := cmd.(domain.RenderCommand).Page.(domain.DonationPage)
	consent, ok := page.Body.(domain.ConsentFormPrompt)
	if !ok {
		t.Fatalf("expected consent form, got %T", page.Body)
	}
	if len(consent.Tables) != 1 || consent.Tables[0].ID != "google_home_no_data_found" {
		t.Fatalf("expected placeholder table, got %+v", consent.Tables)
	}
	if flow.State() != StateAwaitConsent {
		t.Fatalf("expected await consent, got %s", flow.State())
	}
}

func TestFlowEndOrder(t *testing.T) {
	tests := []struct {
		name  string
		order EndOrder
		first func(domain.Command) bool
		last  func(domain.Command) bool
	}{
		{
			name:  "render then exit",
			order: RenderThenExit,
			first: isEndRender,
			last:  isExit,
		},
		{
			name:  "exit then render",
			order: ExitThenRender,
			first: isExit,
			last:  isEndRender,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFlowFixture(sampleTable)
			host := &hostFake{}
			opts := DefaultFlowOptions()
			opts.EndOrder = tc.order

			if err := Drive(context.Background(), fx.flow(opts), host); err != nil {
				t.Fatalf("Drive() error = %v", err)
			}

			n := len(host.rendered)
			if n < 3 {
				t.Fatalf("expected file prompt and both closing commands, got %d", n)
			}
			if !tc.first(host.rendered[n-2]) || !tc.last(host.rendered[n-1]) {
				t.Fatalf("unexpected closing order: %T %T", host.rendered[n-2], host.rendered[n-1])
			}
			exits := 0
			for _, cmd := range host.rendered {
				if isExit(cmd) {
					exits++
				}
			}
			if exits != 1 {
				t.Fatalf("expected exactly one exit, got %d", exits)
			}
		})
	}
}

func isExit(cmd domain.Command) bool {
	exit, ok := cmd.(domain.ExitCommand)
	return ok && exit.Code == 0 && exit.Info == "Success"
}

func isEndRender(cmd domain.Command) bool {
	render, ok := cmd.(domain.RenderCommand)
	if !ok {
		return false
	}
	_, ok = render.Page.(domain.EndPage)
	return ok
}

func TestFlowUnexpectedResponseSkipsPlatform(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{domain.PayloadUnknown{Type: "PayloadFile"}}}

	if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}

	if len(fx.validator.seen) != 0 {
		t.Fatalf("validator must not run for unexpected responses")
	}
	if !strings.Contains(fx.telemetry.Snapshot(), "WARNING --- Unexpected response") {
		t.Fatalf("expected warning in telemetry: %s", fx.telemetry.Snapshot())
	}
	if fx.observer.outcome != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", fx.observer.outcome)
	}
}

func TestFlowRetryDeclinedSkipsPlatform(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "bad.zip"},
		domain.PayloadFalse{},
	}}

	if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}
	if got := host.countPrompts(isConsentPrompt); got != 0 {
		t.Fatalf("expected no consent prompt, got %d", got)
	}
	if len(fx.sink.dataKeys()) != 0 {
		t.Fatalf("expected only tracking donations, got %v", fx.sink.dataKeys())
	}
}

func TestFlowSinkFailuresAreNotFatal(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	fx.sink.err = errors.New("sink down")
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "good.zip"},
		domain.PayloadJSON{Value: `{}`},
		domain.PayloadJSON{Value: `{}`},
	}}
	flow := fx.flow(DefaultFlowOptions())

	if err := Drive(context.Background(), flow, host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}
	if flow.State() != StateEnd {
		t.Fatalf("expected flow to finish, got %s", flow.State())
	}
	if len(fx.observer.donations) != 0 {
		t.Fatalf("failed donations must not be observed, got %v", fx.observer.donations)
	}
}

func TestFlowLifecycleErrors(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	flow := fx.flow(FlowOptions{})
	ctx := context.Background()

	if _, err := flow.Resume(ctx, domain.PayloadVoid{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input before start, got %v", err)
	}
	if _, err := flow.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := flow.Start(ctx); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input on second start, got %v", err)
	}

	for flow.State() != StateEnd {
		if _, err := flow.Resume(ctx, domain.PayloadVoid{}); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
	}
	if _, err := flow.Resume(ctx, domain.PayloadVoid{}); !errors.Is(err, domain.ErrFlowFinished) {
		t.Fatalf("expected ErrFlowFinished, got %v", err)
	}
}

func TestFlowWithoutPlatformsEndsImmediately(t *testing.T) {
	flow := NewFlow("s2", FlowDeps{}, DefaultFlowOptions())
	cmd, err := flow.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !isEndRender(cmd) {
		t.Fatalf("expected end page, got %T", cmd)
	}
}

func TestFlowDiscardsArchiveOnceUsed(t *testing.T) {
	tests := []struct {
		name      string
		responses []domain.Response
		want      []string
	}{
		{
			name: "declined after review",
			responses: []domain.Response{
				domain.PayloadString{Value: "good.zip"},
				domain.PayloadFalse{},
			},
			want: []string{"good.zip"},
		},
		{
			name: "retry declined",
			responses: []domain.Response{
				domain.PayloadString{Value: "bad.zip"},
				domain.PayloadFalse{},
			},
			want: []string{"bad.zip"},
		},
		{
			name: "retry then donate",
			responses: []domain.Response{
				domain.PayloadString{Value: "bad.zip"},
				domain.PayloadTrue{},
				domain.PayloadString{Value: "good.zip"},
				domain.PayloadJSON{Value: `{}`},
			},
			want: []string{"bad.zip", "good.zip"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFlowFixture(sampleTable)
			host := &hostFake{responses: tc.responses}
			if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
				t.Fatalf("Drive() error = %v", err)
			}
			assertKeys(t, fx.archives.discarded, tc.want)
		})
	}
}

func TestFlowArchiveCleanupFailureIsNotFatal(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	fx.archives.err = errors.New("permission denied")
	flow := fx.flow(DefaultFlowOptions())
	ctx := context.Background()

	if _, err := flow.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := flow.Resume(ctx, domain.PayloadString{Value: "good.zip"}); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if flow.State() != StateAwaitConsent {
		t.Fatalf("expected await consent, got %s", flow.State())
	}
	if !strings.Contains(fx.telemetry.Snapshot(), "Archive cleanup failed") {
		t.Fatalf("expected cleanup warning in telemetry: %s", fx.telemetry.Snapshot())
	}
}

func TestFlowLogsFoundMembersToTelemetry(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	withMembers := recognizedHTML
	withMembers.Members = []string{"archive_browser.html", "MijnActiviteit.html"}
	fx.validator.results["good.zip"] = withMembers
	flow := fx.flow(DefaultFlowOptions())
	ctx := context.Background()

	if _, err := flow.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := flow.Resume(ctx, domain.PayloadString{Value: "good.zip"}); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	var tracking string
	for _, call := range fx.sink.calls {
		if call.key == "s1-tracking" {
			tracking = call.payload
		}
	}
	for _, want := range []string{"DEBUG --- Found: archive_browser.html in zip", "DEBUG --- Found: MijnActiviteit.html in zip"} {
		if !strings.Contains(tracking, want) {
			t.Fatalf("expected %q in tracking donation, got %s", want, tracking)
		}
	}
}

func TestFlowDonationsCarrySessionID(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	host := &hostFake{responses: []domain.Response{
		domain.PayloadString{Value: "good.zip"},
		domain.PayloadJSON{Value: `{}`},
	}}

	if err := Drive(context.Background(), fx.flow(DefaultFlowOptions()), host); err != nil {
		t.Fatalf("Drive() error = %v", err)
	}
	var sawData bool
	for _, call := range fx.sink.calls {
		if call.sessionID != "s1" {
			t.Fatalf("donation %q carried session %q", call.key, call.sessionID)
		}
		if call.key == "Google Home" {
			sawData = true
		}
	}
	if !sawData {
		t.Fatalf("expected data donation under the platform name, got %v", fx.sink.keys())
	}
}

func TestFlowAbandonFlushesTracking(t *testing.T) {
	fx := newFlowFixture(sampleTable)
	flow := fx.flow(DefaultFlowOptions())
	ctx := context.Background()

	if _, err := flow.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	before := len(fx.sink.calls)
	flow.Abandon(ctx)

	if flow.State() != StateEnd {
		t.Fatalf("expected end state, got %s", flow.State())
	}
	if len(fx.sink.calls) != before+1 {
		t.Fatalf("expected one tracking flush, got %d new donations", len(fx.sink.calls)-before)
	}
	last := fx.sink.calls[len(fx.sink.calls)-1]
	if last.key != "s1-tracking" || !strings.Contains(last.payload, "Session abandoned") {
		t.Fatalf("unexpected flush %+v", last)
	}
	if fx.observer.outcome != OutcomeAbandoned {
		t.Fatalf("expected abandoned outcome, got %s", fx.observer.outcome)
	}

	flow.Abandon(ctx)
	if len(fx.sink.calls) != before+1 {
		t.Fatalf("abandoning a finished flow must not donate again")
	}
}
