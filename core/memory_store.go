package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

const firstStreamID uint64 = 1

type memoryStreamState struct {
	nextID      uint64
	streams     map[uint64]Stream
	withdrawals map[uint64][]WithdrawalRecord
}

func (s memoryStreamState) clone() memoryStreamState {
	out := memoryStreamState{
		nextID:      s.nextID,
		streams:     make(map[uint64]Stream, len(s.streams)),
		withdrawals: make(map[uint64][]WithdrawalRecord, len(s.withdrawals)),
	}
	for id, stream := range s.streams {
		out.streams[id] = stream.Clone()
	}
	for id, records := range s.withdrawals {
		out.withdrawals[id] = append([]WithdrawalRecord(nil), records...)
	}
	return out
}

// MemoryStreamStore keeps streams in a map with explicit removal.
// Transactions run against a copy that replaces the live state on commit.
type MemoryStreamStore struct {
	mu    sync.Mutex
	state memoryStreamState
}

func NewMemoryStreamStore() *MemoryStreamStore {
	return &MemoryStreamStore{
		state: memoryStreamState{
			nextID:      firstStreamID,
			streams:     map[uint64]Stream{},
			withdrawals: map[uint64][]WithdrawalRecord{},
		},
	}
}

func (s *MemoryStreamStore) Get(_ context.Context, id uint64) (Stream, error) {
	if s == nil {
		return Stream{}, fmt.Errorf("core: stream store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return getStream(s.state, id)
}

func (s *MemoryStreamStore) NextStreamID(_ context.Context) (uint64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: stream store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.nextID, nil
}

func (s *MemoryStreamStore) ListByRecipient(_ context.Context, recipient string) ([]Stream, error) {
	if s == nil {
		return nil, fmt.Errorf("core: stream store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return listByRecipient(s.state, recipient), nil
}

func (s *MemoryStreamStore) ListWithdrawals(_ context.Context, streamID uint64) ([]WithdrawalRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: stream store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.state.withdrawals[streamID]
	out := make([]WithdrawalRecord, 0, len(records))
	for _, record := range records {
		out = append(out, cloneWithdrawalRecord(record))
	}
	return out, nil
}

func (s *MemoryStreamStore) InTx(ctx context.Context, fn func(ctx context.Context, tx StreamTx) error) error {
	if s == nil {
		return fmt.Errorf("core: stream store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("core: transaction callback is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryStreamTx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type memoryStreamTx struct {
	state memoryStreamState
}

func (t *memoryStreamTx) Get(_ context.Context, id uint64) (Stream, error) {
	return getStream(t.state, id)
}

func (t *memoryStreamTx) NextStreamID(context.Context) (uint64, error) {
	return t.state.nextID, nil
}

func (t *memoryStreamTx) ListByRecipient(_ context.Context, recipient string) ([]Stream, error) {
	return listByRecipient(t.state, recipient), nil
}

func (t *memoryStreamTx) Insert(_ context.Context, stream Stream) error {
	if stream.ID == 0 {
		return fmt.Errorf("core: stream id is required")
	}
	if _, exists := t.state.streams[stream.ID]; exists {
		return fmt.Errorf("core: stream %d already exists", stream.ID)
	}
	t.state.streams[stream.ID] = stream.Clone()
	return nil
}

func (t *memoryStreamTx) UpdateBalance(_ context.Context, id uint64, expected, balance *uint256.Int) error {
	stream, ok := t.state.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrStreamNotFound, id)
	}
	if !sameBalance(stream.Balance, expected) {
		return fmt.Errorf("%w: %d", ErrStaleBalance, id)
	}
	stream.Balance = cloneAmount(balance)
	t.state.streams[id] = stream
	return nil
}

func (t *memoryStreamTx) Delete(_ context.Context, id uint64, expected *uint256.Int) error {
	stream, ok := t.state.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrStreamNotFound, id)
	}
	if !sameBalance(stream.Balance, expected) {
		return fmt.Errorf("%w: %d", ErrStaleBalance, id)
	}
	delete(t.state.streams, id)
	return nil
}

func sameBalance(current, expected *uint256.Int) bool {
	return cloneAmount(current).Eq(cloneAmount(expected))
}

func (t *memoryStreamTx) AdvanceStreamID(context.Context) (uint64, error) {
	t.state.nextID++
	return t.state.nextID, nil
}

func (t *memoryStreamTx) RecordWithdrawal(_ context.Context, record WithdrawalRecord) error {
	t.state.withdrawals[record.StreamID] = append(t.state.withdrawals[record.StreamID], cloneWithdrawalRecord(record))
	return nil
}

func getStream(state memoryStreamState, id uint64) (Stream, error) {
	stream, ok := state.streams[id]
	if !ok {
		return Stream{}, fmt.Errorf("%w: %d", ErrStreamNotFound, id)
	}
	return stream.Clone(), nil
}

func listByRecipient(state memoryStreamState, recipient string) []Stream {
	recipient = NormalizeAddress(recipient)
	out := []Stream{}
	for _, stream := range state.streams {
		if NormalizeAddress(stream.Recipient) == recipient {
			out = append(out, stream.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneWithdrawalRecord(record WithdrawalRecord) WithdrawalRecord {
	cloned := record
	cloned.Amount = cloneAmount(record.Amount)
	cloned.Remaining = cloneAmount(record.Remaining)
	return cloned
}

type MemoryTrustedPeerStore struct {
	mu    sync.RWMutex
	peers map[uint32]TrustedPeer
	Now   func() time.Time
}

func NewMemoryTrustedPeerStore() *MemoryTrustedPeerStore {
	return &MemoryTrustedPeerStore{
		peers: map[uint32]TrustedPeer{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryTrustedPeerStore) Get(_ context.Context, domainID uint32) (TrustedPeer, error) {
	if s == nil {
		return TrustedPeer{}, fmt.Errorf("core: trusted peer store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	peer, ok := s.peers[domainID]
	if !ok {
		return TrustedPeer{}, fmt.Errorf("%w: domain %d", ErrTrustedPeerNotFound, domainID)
	}
	return peer, nil
}

func (s *MemoryTrustedPeerStore) Upsert(_ context.Context, peer TrustedPeer) error {
	if s == nil {
		return fmt.Errorf("core: trusted peer store is not configured")
	}
	address := strings.TrimSpace(peer.Address)
	if address == "" {
		return fmt.Errorf("core: trusted peer address is required")
	}
	peer.Address = address
	if peer.UpdatedAt.IsZero() {
		peer.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[peer.DomainID] = peer
	return nil
}

func (s *MemoryTrustedPeerStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	_ StreamStore       = (*MemoryStreamStore)(nil)
	_ WithdrawalHistory = (*MemoryStreamStore)(nil)
	_ TrustedPeerStore  = (*MemoryTrustedPeerStore)(nil)
)
