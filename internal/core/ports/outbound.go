package ports

import (
	"context"
	"io"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// ObjectStorage stores uploaded archives.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveDiscarder removes a stored archive once the flow no longer needs it.
type ArchiveDiscarder interface {
	Discard(ctx context.Context, key string) error
}

// Archive is an opened container addressable by member name.
type Archive interface {
	Names() []string
	ReadMember(name string) ([]byte, error)
	Close() error
}

// ArchiveOpener opens the archive behind a file payload reference.
type ArchiveOpener interface {
	Open(ctx context.Context, ref string) (Archive, error)
}

// CategoryRegistry exposes the recognized categories in match order.
type CategoryRegistry interface {
	Categories() []domain.Category
}

// InteractionExtractor reads one format's interactions from an archive.
type InteractionExtractor interface {
	Extract(ctx context.Context, archive Archive, category domain.Category) ([]domain.RawInteraction, error)
}

// DonationSink receives donation events. Callers do not wait for delivery
// beyond the call itself.
type DonationSink interface {
	Donate(ctx context.Context, sessionID, key, payload string) error
}

// DonationQueue publishes/consumes donation events.
type DonationQueue interface {
	DonationSink
	SubscribeDonations(ctx context.Context, handler func(context.Context, domain.Donation) error) error
}

// DonationRepository persists donation events.
type DonationRepository interface {
	Save(ctx context.Context, donation *domain.Donation) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Donation, error)
}

// Host renders commands and returns the participant's response.
type Host interface {
	Render(ctx context.Context, cmd domain.Command) (domain.Response, error)
}

// FlowObserver receives flow milestones for metrics.
type FlowObserver interface {
	ObserveFlowStarted()
	ObserveValidation(status domain.ValidationStatus)
	ObserveExtraction(format domain.Format, records int)
	ObserveDonation(kind string)
	ObserveFlowFinished(outcome string)
}
