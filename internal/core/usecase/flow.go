package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type FlowState string

const (
	StateNew                          FlowState = "new"
	StateAwaitFile                    FlowState = "await_file"
	StateRetryConfirm                 FlowState = "retry_confirm"
	StateAwaitConsent                 FlowState = "await_consent"
	StateAwaitQuestionnaire           FlowState = "await_questionnaire"
	StateAwaitQuestionnaireNoDonation FlowState = "await_questionnaire_no_donation"
	StateEndRendered                  FlowState = "end_rendered"
	StateExitIssued                   FlowState = "exit_issued"
	StateEnd                          FlowState = "end"
)

// EndOrder decides which of the two closing commands is issued first.
type EndOrder string

const (
	RenderThenExit EndOrder = "render_then_exit"
	ExitThenRender EndOrder = "exit_then_render"
)

const (
	StatusDonated  = "donated"
	StatusDeclined = "declined"

	OutcomeDonated  = "donated"
	OutcomeDeclined = "declined"
	OutcomeSkipped   = "skipped"
	OutcomeAbandoned = "abandoned"

	defaultFileExtensions = "application/zip, text/plain, application/json"
)

// Platform is one data source the flow asks the participant for.
type Platform struct {
	Name      string
	Validator ports.ArchiveValidator
	Extractor ports.TableExtractor
}

type FlowDeps struct {
	Platforms []Platform
	Sink      ports.DonationSink
	Observer  ports.FlowObserver
	// Archives removes uploaded archives once validated or extracted.
	// Nil leaves archives in place.
	Archives ports.ArchiveDiscarder
	// Telemetry is the session's append-only log; its snapshot is what
	// tracking donations carry.
	Telemetry TelemetryLog
	// Logger should write to Telemetry; when nil a logger over Telemetry is used.
	Logger *slog.Logger
}

// TelemetryLog is a session-scoped log buffer.
type TelemetryLog interface {
	slog.Handler
	Snapshot() string
}

type FlowOptions struct {
	EmitStatusEvents bool
	DonateButton     domain.Translatable
	EndOrder         EndOrder
	FileExtensions   string
}

func DefaultFlowOptions() FlowOptions {
	return FlowOptions{
		EmitStatusEvents: true,
		EndOrder:         RenderThenExit,
		FileExtensions:   defaultFileExtensions,
	}
}

// Flow is the donation state machine for one session. It suspends at every
// render command and only advances on Resume. A Flow is not safe for
// concurrent use.
type Flow struct {
	sessionID string
	deps      FlowDeps
	opts      FlowOptions
	logger    *slog.Logger

	state       FlowState
	platformIdx int
	table       domain.Table
	outcome     string
}

func NewFlow(sessionID string, deps FlowDeps, opts FlowOptions) *Flow {
	if opts.EndOrder == "" {
		opts.EndOrder = RenderThenExit
	}
	if opts.FileExtensions == "" {
		opts.FileExtensions = defaultFileExtensions
	}
	logger := deps.Logger
	if logger == nil {
		if deps.Telemetry != nil {
			logger = slog.New(deps.Telemetry)
		} else {
			logger = slog.Default()
		}
	}
	return &Flow{
		sessionID: sessionID,
		deps:      deps,
		opts:      opts,
		logger:    logger,
		state:     StateNew,
		outcome:   OutcomeSkipped,
	}
}

func (f *Flow) SessionID() string { return f.sessionID }

func (f *Flow) State() FlowState { return f.state }

// Start emits the start telemetry and returns the first suspension command.
func (f *Flow) Start(ctx context.Context) (domain.Command, error) {
	if f.state != StateNew {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start flow", errors.New("flow already started"))
	}
	if f.deps.Observer != nil {
		f.deps.Observer.ObserveFlowStarted()
	}
	f.logger.Info("Starting the donation flow")
	f.donateLogs(ctx, f.trackingKey())
	return f.beginPlatform(ctx), nil
}

// Resume feeds the host's response to the current suspension point.
func (f *Flow) Resume(ctx context.Context, resp domain.Response) (domain.Command, error) {
	switch f.state {
	case StateNew:
		return nil, domain.WrapError(domain.ErrInvalidInput, "resume flow", errors.New("flow not started"))
	case StateAwaitFile:
		return f.onFile(ctx, resp), nil
	case StateRetryConfirm:
		return f.onRetry(ctx, resp), nil
	case StateAwaitConsent:
		return f.onConsent(ctx, resp), nil
	case StateAwaitQuestionnaire:
		return f.onQuestionnaire(ctx, resp, true), nil
	case StateAwaitQuestionnaireNoDonation:
		return f.onQuestionnaire(ctx, resp, false), nil
	case StateEndRendered, StateExitIssued:
		return f.completeEnd(), nil
	case StateEnd:
		return nil, domain.ErrFlowFinished
	default:
		return nil, fmt.Errorf("resume flow: unknown state %q", f.state)
	}
}

func (f *Flow) beginPlatform(ctx context.Context) domain.Command {
	if f.platformIdx >= len(f.deps.Platforms) {
		return f.beginEnd()
	}
	return f.promptFile(ctx)
}

func (f *Flow) nextPlatform(ctx context.Context) domain.Command {
	f.platformIdx++
	f.table = nil
	return f.beginPlatform(ctx)
}

func (f *Flow) platform() Platform {
	return f.deps.Platforms[f.platformIdx]
}

func (f *Flow) promptFile(ctx context.Context) domain.Command {
	name := f.platform().Name
	f.logger.Info("Prompt for file", "platform", name)
	f.donateLogs(ctx, f.trackingKey())

	f.state = StateAwaitFile
	return donationPage(name, filePrompt(f.opts.FileExtensions))
}

func (f *Flow) onFile(ctx context.Context, resp domain.Response) domain.Command {
	platform := f.platform()

	var archiveRef string
	switch r := resp.(type) {
	case domain.PayloadString:
		archiveRef = strings.TrimSpace(r.Value)
	case domain.PayloadVoid, domain.PayloadFalse:
	default:
		f.unexpected(resp, StateAwaitFile)
	}

	if archiveRef == "" {
		f.logger.Info("Skipped", "platform", platform.Name)
		f.donateLogs(ctx, f.trackingKey())
		return f.nextPlatform(ctx)
	}

	validation := platform.Validator.Validate(ctx, archiveRef)
	if f.deps.Observer != nil {
		f.deps.Observer.ObserveValidation(validation.Status)
	}
	for _, member := range validation.Members {
		f.logger.Debug(fmt.Sprintf("Found: %s in zip", member))
	}

	if validation.Recognized() {
		f.logger.Info("Payload received", "platform", platform.Name, "category", validation.Category.ID)
		f.donateLogs(ctx, f.trackingKey())

		f.table = platform.Extractor.Extract(ctx, archiveRef, validation)
		f.discardArchive(ctx, archiveRef)
		return f.promptConsent(ctx)
	}

	f.discardArchive(ctx, archiveRef)
	f.logger.Info("Not a valid archive; prompt retry confirmation",
		"platform", platform.Name, "status", validation.Status.String())
	f.donateLogs(ctx, f.trackingKey())

	f.state = StateRetryConfirm
	return donationPage(platform.Name, retryConfirmation(platform.Name))
}

func (f *Flow) onRetry(ctx context.Context, resp domain.Response) domain.Command {
	switch resp.(type) {
	case domain.PayloadTrue:
		return f.promptFile(ctx)
	case domain.PayloadFalse, domain.PayloadVoid:
	default:
		f.unexpected(resp, StateRetryConfirm)
	}

	f.logger.Info("Skipped during retry", "platform", f.platform().Name)
	f.donateLogs(ctx, f.trackingKey())
	return f.nextPlatform(ctx)
}

func (f *Flow) promptConsent(ctx context.Context) domain.Command {
	name := f.platform().Name
	f.logger.Info("Prompt consent", "platform", name, "records", len(f.table))
	f.donateLogs(ctx, f.trackingKey())

	f.state = StateAwaitConsent
	return donationPage(name, consentForm(name, f.table, f.opts.DonateButton))
}

func (f *Flow) onConsent(ctx context.Context, resp domain.Response) domain.Command {
	name := f.platform().Name

	switch r := resp.(type) {
	case domain.PayloadJSON:
		f.logger.Info("Data donated", "platform", name)
		f.donateLogs(ctx, f.trackingKey())
		f.donate(ctx, name, r.Value, "data")
		f.emitStatus(ctx, StatusDonated)
		f.outcome = OutcomeDonated

		f.state = StateAwaitQuestionnaire
		return donationPage("page", questionnaire(name, false))
	case domain.PayloadVoid, domain.PayloadFalse:
	default:
		f.unexpected(resp, StateAwaitConsent)
	}

	f.logger.Info("Skipped after reviewing consent", "platform", name)
	f.donateLogs(ctx, f.trackingKey())
	f.emitStatus(ctx, StatusDeclined)
	if f.outcome != OutcomeDonated {
		f.outcome = OutcomeDeclined
	}

	f.state = StateAwaitQuestionnaireNoDonation
	return donationPage("page", questionnaire(name, true))
}

func (f *Flow) onQuestionnaire(ctx context.Context, resp domain.Response, accepted bool) domain.Command {
	name := f.platform().Name
	suffix := "questionnaire-no-donation"
	if accepted {
		suffix = "questionnaire-donation"
	}

	switch r := resp.(type) {
	case domain.PayloadJSON:
		f.donate(ctx, f.platformKey(suffix), r.Value, "questionnaire")
		return f.nextPlatform(ctx)
	case domain.PayloadVoid, domain.PayloadFalse:
	default:
		f.unexpected(resp, f.state)
	}

	if accepted {
		f.logger.Info("Skipped questionnaire", "platform", name)
		f.donateLogs(ctx, f.platformKey("tracking"))
	} else {
		f.logger.Info("Skipped questionnaire no donation", "platform", name)
		f.donateLogs(ctx, f.trackingKey())
	}
	return f.nextPlatform(ctx)
}

func (f *Flow) beginEnd() domain.Command {
	if f.deps.Observer != nil {
		f.deps.Observer.ObserveFlowFinished(f.outcome)
	}
	if f.opts.EndOrder == ExitThenRender {
		f.state = StateExitIssued
		return exitCommand()
	}
	f.state = StateEndRendered
	return endPage()
}

// completeEnd issues whichever closing command has not been issued yet.
func (f *Flow) completeEnd() domain.Command {
	previous := f.state
	f.state = StateEnd
	if previous == StateExitIssued {
		return endPage()
	}
	return exitCommand()
}

// Abandon closes a flow the host stopped driving: the tracking log is
// flushed and the flow moves straight to StateEnd.
func (f *Flow) Abandon(ctx context.Context) {
	if f.state == StateEnd {
		return
	}
	f.logger.Info("Session abandoned", "state", string(f.state))
	f.donateLogs(ctx, f.trackingKey())
	if f.deps.Observer != nil && f.state != StateEndRendered && f.state != StateExitIssued {
		f.deps.Observer.ObserveFlowFinished(OutcomeAbandoned)
	}
	f.table = nil
	f.state = StateEnd
}

func (f *Flow) discardArchive(ctx context.Context, archiveRef string) {
	if f.deps.Archives == nil {
		return
	}
	if err := f.deps.Archives.Discard(ctx, archiveRef); err != nil {
		f.logger.Warn("Archive cleanup failed", "archive", archiveRef, "error", err)
	}
}

func (f *Flow) emitStatus(ctx context.Context, status string) {
	if !f.opts.EmitStatusEvents {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"platform": f.platform().Name,
		"status":   status,
	})
	if err != nil {
		f.logger.Error("status_event_encode_failed", "error", err)
		return
	}
	f.donate(ctx, f.platformKey("status"), string(payload), "status")
}

func (f *Flow) donateLogs(ctx context.Context, key string) {
	snapshot := `["no logs"]`
	if f.deps.Telemetry != nil {
		snapshot = f.deps.Telemetry.Snapshot()
	}
	f.donate(ctx, key, snapshot, "tracking")
}

// donate is fire-and-forget: sink failures are logged, never surfaced.
func (f *Flow) donate(ctx context.Context, key, payload, kind string) {
	if f.deps.Sink == nil {
		return
	}
	if err := f.deps.Sink.Donate(ctx, f.sessionID, key, payload); err != nil {
		f.logger.Error("Donation failed", "key", key, "error", err)
		return
	}
	if f.deps.Observer != nil {
		f.deps.Observer.ObserveDonation(kind)
	}
}

func (f *Flow) unexpected(resp domain.Response, state FlowState) {
	f.logger.Warn("Unexpected response", "state", string(state), "type", domain.ResponseType(resp))
}

func (f *Flow) trackingKey() string {
	return f.sessionID + "-tracking"
}

func (f *Flow) platformKey(suffix string) string {
	return fmt.Sprintf("%s-%s-%s", f.sessionID, f.platform().Name, suffix)
}
