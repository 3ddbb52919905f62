package ports

import (
	"context"
	"io"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// ArchiveUploader is the inbound contract for storing a submitted DDP.
type ArchiveUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
	ArchiveDiscarder
}

// ArchiveValidator recognizes the category of a stored archive.
type ArchiveValidator interface {
	Validate(ctx context.Context, archiveRef string) domain.ValidationResult
}

// TableExtractor converts a recognized archive into the normalized table.
type TableExtractor interface {
	Extract(ctx context.Context, archiveRef string, validation domain.ValidationResult) domain.Table
}

// DonationSessions drives interactive donation flows on behalf of a host.
type DonationSessions interface {
	Start(ctx context.Context, sessionID string) (string, domain.Command, error)
	Respond(ctx context.Context, sessionID string, resp domain.Response) (domain.Command, error)
	State(ctx context.Context, sessionID string) (string, error)
}

// DonationRecorder persists donation events delivered by the queue.
type DonationRecorder interface {
	Record(ctx context.Context, donation domain.Donation) error
}
