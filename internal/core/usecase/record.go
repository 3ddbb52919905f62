package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
)

type RecordDonationUseCase struct {
	repo ports.DonationRepository
	now  func() time.Time
}

func NewRecordDonationUseCase(repo ports.DonationRepository) *RecordDonationUseCase {
	return &RecordDonationUseCase{repo: repo, now: time.Now}
}

// Record persists a donation delivered by the queue, filling in the id and
// receive time when the publisher did not set them.
func (uc *RecordDonationUseCase) Record(ctx context.Context, donation domain.Donation) error {
	if strings.TrimSpace(donation.Key) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record donation", errors.New("empty key"))
	}
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	if donation.ReceivedAt.IsZero() {
		donation.ReceivedAt = uc.now().UTC()
	}
	return uc.repo.Save(ctx, &donation)
}

// RepositorySink writes donations straight to the repository, for
// deployments without a queue.
type RepositorySink struct {
	recorder *RecordDonationUseCase
}

func NewRepositorySink(repo ports.DonationRepository) *RepositorySink {
	return &RepositorySink{recorder: NewRecordDonationUseCase(repo)}
}

func (s *RepositorySink) Donate(ctx context.Context, sessionID, key, payload string) error {
	return s.recorder.Record(ctx, domain.Donation{SessionID: sessionID, Key: key, Payload: payload})
}
