package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/uptrace/bun"
)

// TrustedPeerStore keeps at most one trusted peer per remote domain.
type TrustedPeerStore struct {
	db   *bun.DB
	repo repository.Repository[*trustedPeerRecord]
	Now  func() time.Time
}

func NewTrustedPeerStore(db *bun.DB) (*TrustedPeerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*trustedPeerRecord](db, trustedPeerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid trusted peer repository wiring: %w", err)
		}
	}
	return &TrustedPeerStore{db: db, repo: repo, Now: time.Now}, nil
}

func (s *TrustedPeerStore) Get(ctx context.Context, domainID uint32) (core.TrustedPeer, error) {
	if s == nil || s.repo == nil {
		return core.TrustedPeer{}, fmt.Errorf("sqlstore: trusted peer store is not configured")
	}
	record, err := s.find(ctx, domainID)
	if err != nil {
		return core.TrustedPeer{}, err
	}
	if record == nil {
		return core.TrustedPeer{}, fmt.Errorf("%w: domain %d", core.ErrTrustedPeerNotFound, domainID)
	}
	return record.toDomain(), nil
}

func (s *TrustedPeerStore) Upsert(ctx context.Context, peer core.TrustedPeer) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: trusted peer store is not configured")
	}
	address := strings.TrimSpace(peer.Address)
	if address == "" {
		return fmt.Errorf("sqlstore: trusted peer address is required")
	}
	now := s.now()

	current, err := s.find(ctx, peer.DomainID)
	if err != nil {
		return err
	}
	if current == nil {
		record := &trustedPeerRecord{
			ID:        uuid.NewString(),
			DomainID:  int64(peer.DomainID),
			Address:   address,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.repo.Create(ctx, record); err != nil {
			if !isUniqueViolation(err) {
				return err
			}
			current, err = s.find(ctx, peer.DomainID)
			if err != nil {
				return err
			}
			if current == nil {
				return fmt.Errorf("sqlstore: trusted peer for domain %d vanished after conflict", peer.DomainID)
			}
		} else {
			return nil
		}
	}

	current.Address = address
	current.UpdatedAt = now
	_, err = s.repo.Update(ctx, current, repository.UpdateByID(current.ID))
	return err
}

func (s *TrustedPeerStore) find(ctx context.Context, domainID uint32) (*trustedPeerRecord, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("domain_id", "=", strconv.FormatUint(uint64(domainID), 10)),
		repository.OrderBy("updated_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *TrustedPeerStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
