package core

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestMemoryStreamStore_InTxDiscardsOnError(t *testing.T) {
	store := NewMemoryStreamStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		if err := tx.Insert(ctx, Stream{ID: 1, Recipient: "r", Balance: uint256.NewInt(5)}); err != nil {
			return err
		}
		if _, err := tx.AdvanceStreamID(ctx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if next, _ := store.NextStreamID(ctx); next != 1 {
		t.Fatalf("expected counter rollback, got %d", next)
	}
	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("expected stream rollback, got %v", err)
	}
}

func TestMemoryStreamStore_CommitIsolatesCallerCopies(t *testing.T) {
	store := NewMemoryStreamStore()
	ctx := context.Background()
	balance := uint256.NewInt(10)
	if err := store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		return tx.Insert(ctx, Stream{ID: 1, Recipient: "r", Balance: balance})
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	balance.SetUint64(1)

	stream, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stream.Balance.Uint64() != 10 {
		t.Fatalf("expected stored balance 10, got %s", stream.Balance.Dec())
	}
	stream.Balance.SetUint64(3)
	again, _ := store.Get(ctx, 1)
	if again.Balance.Uint64() != 10 {
		t.Fatalf("expected reads to return copies, got %s", again.Balance.Dec())
	}
}

func TestMemoryStreamStore_DeleteMissing(t *testing.T) {
	store := NewMemoryStreamStore()
	err := store.InTx(context.Background(), func(ctx context.Context, tx StreamTx) error {
		return tx.Delete(ctx, 9, uint256.NewInt(0))
	})
	if !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestMemoryStreamStore_StaleBalanceIsRejected(t *testing.T) {
	store := NewMemoryStreamStore()
	ctx := context.Background()
	if err := store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		return tx.Insert(ctx, Stream{ID: 1, Recipient: "r", Balance: uint256.NewInt(5)})
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		return tx.UpdateBalance(ctx, 1, uint256.NewInt(4), uint256.NewInt(3))
	})
	if !errors.Is(err, ErrStaleBalance) {
		t.Fatalf("expected ErrStaleBalance on update, got %v", err)
	}
	err = store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		return tx.Delete(ctx, 1, uint256.NewInt(4))
	})
	if !errors.Is(err, ErrStaleBalance) {
		t.Fatalf("expected ErrStaleBalance on delete, got %v", err)
	}
	stream, err := store.Get(ctx, 1)
	if err != nil || stream.Balance.Uint64() != 5 {
		t.Fatalf("expected balance 5 untouched, got %v (%v)", stream.Balance, err)
	}
}

func TestMemoryTrustedPeerStore_UpsertOverwrites(t *testing.T) {
	store := NewMemoryTrustedPeerStore()
	ctx := context.Background()
	if _, err := store.Get(ctx, 2); !errors.Is(err, ErrTrustedPeerNotFound) {
		t.Fatalf("expected ErrTrustedPeerNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, TrustedPeer{DomainID: 2, Address: "peer-a"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, TrustedPeer{DomainID: 2, Address: " peer-b "}); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}
	peer, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if peer.Address != "peer-b" || peer.UpdatedAt.IsZero() {
		t.Fatalf("unexpected peer: %+v", peer)
	}
	if err := store.Upsert(ctx, TrustedPeer{DomainID: 3}); err == nil {
		t.Fatalf("expected blank address error")
	}
}
