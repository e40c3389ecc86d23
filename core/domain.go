package core

import (
	"strings"
	"time"

	"github.com/holiman/uint256"
)

const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Stream is one escrow commitment released linearly to Recipient between
// StartTime and EndTime. A stored Stream always has a non-zero Balance.
type Stream struct {
	ID            uint64
	TokenAddress  string
	Sender        string
	Recipient     string
	DepositAmount *uint256.Int
	RatePerSecond *uint256.Int
	Balance       *uint256.Int
	StartTime     uint64
	EndTime       uint64
	CreatedAt     time.Time
}

// Withdrawn returns the cumulative amount already paid out of the stream.
func (s Stream) Withdrawn() *uint256.Int {
	deposit := cloneAmount(s.DepositAmount)
	balance := cloneAmount(s.Balance)
	if deposit.Lt(balance) {
		return new(uint256.Int)
	}
	return deposit.Sub(deposit, balance)
}

func (s Stream) Clone() Stream {
	cloned := s
	cloned.DepositAmount = cloneAmount(s.DepositAmount)
	cloned.RatePerSecond = cloneAmount(s.RatePerSecond)
	cloned.Balance = cloneAmount(s.Balance)
	return cloned
}

type CreateStreamRequest struct {
	Caller        string
	TokenAddress  string
	Recipient     string
	StartTime     uint64
	EndTime       uint64
	DepositAmount *uint256.Int
}

type WithdrawRequest struct {
	StreamID  uint64
	Amount    *uint256.Int
	Requester string
	// Origin tags where the request came from, OriginLocal or
	// "remote:<domain id>" for gateway deliveries.
	Origin string
}

type WithdrawalResult struct {
	StreamID  uint64
	Amount    *uint256.Int
	Remaining *uint256.Int
	// Settled is true when the withdrawal drained the stream and the
	// record was removed.
	Settled bool
}

type WithdrawalRecord struct {
	ID         string
	StreamID   uint64
	Requester  string
	Amount     *uint256.Int
	Remaining  *uint256.Int
	Origin     string
	OccurredAt time.Time
}

type TrustedPeer struct {
	DomainID  uint32
	Address   string
	UpdatedAt time.Time
}

type OutboundMessage struct {
	ID                  string
	SourceDomainID      uint32
	SourceAddress       string
	DestinationDomainID uint32
	DestinationAddress  string
	Payload             []byte
	FeeBudget           *uint256.Int
}

type InboundMessage struct {
	SourceDomainID uint32
	SourceAddress  string
	Payload        []byte
}

// NormalizeAddress folds an identity into its canonical comparison form.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func SameAddress(a, b string) bool {
	left := NormalizeAddress(a)
	return left != "" && left == NormalizeAddress(b)
}

func cloneAmount(amount *uint256.Int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(amount)
}

// CloneAmount returns an independent copy; nil becomes zero.
func CloneAmount(amount *uint256.Int) *uint256.Int {
	return cloneAmount(amount)
}
