package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

type routeKey struct {
	domainID uint32
	address  string
}

// Delivery is the outcome of handing one message to its receiver.
type Delivery struct {
	Message     core.OutboundMessage
	Result      core.WithdrawalResult
	Err         error
	DeliveredAt time.Time
}

// MemoryRelay is a messaging endpoint connecting gateways in one process.
// In deferred mode accepted messages wait for Flush. Receiver failures are
// recorded as deliveries and never returned to the sender.
type MemoryRelay struct {
	mu         sync.Mutex
	receivers  map[routeKey]core.MessageReceiver
	deferred   bool
	pending    []core.OutboundMessage
	deliveries []Delivery
	Now        func() time.Time
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{
		receivers: map[routeKey]core.MessageReceiver{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func NewDeferredRelay() *MemoryRelay {
	relay := NewMemoryRelay()
	relay.deferred = true
	return relay
}

func (r *MemoryRelay) Register(domainID uint32, address string, receiver core.MessageReceiver) error {
	if r == nil {
		return transportError("transport: relay is nil", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	if receiver == nil {
		return transportError("transport: receiver is nil", goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}
	key := newRouteKey(domainID, address)
	if key.address == "" {
		return transportError("transport: receiver address is required", goerrors.CategoryBadInput, http.StatusBadRequest, map[string]any{
			"domain_id": domainID,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.receivers[key]; exists {
		return transportError(
			fmt.Sprintf("transport: receiver already registered for %d/%s", domainID, key.address),
			goerrors.CategoryConflict,
			http.StatusConflict,
			map[string]any{"domain_id": domainID, "address": key.address},
		)
	}
	r.receivers[key] = receiver
	return nil
}

func (r *MemoryRelay) Resolve(domainID uint32, address string) (core.MessageReceiver, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	receiver, ok := r.receivers[newRouteKey(domainID, address)]
	return receiver, ok
}

func (r *MemoryRelay) Send(ctx context.Context, msg core.OutboundMessage) error {
	if r == nil {
		return transportError("transport: relay is nil", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	receiver, ok := r.Resolve(msg.DestinationDomainID, msg.DestinationAddress)
	if !ok {
		return transportError(
			fmt.Sprintf("transport: no receiver for %d/%s", msg.DestinationDomainID, core.NormalizeAddress(msg.DestinationAddress)),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			map[string]any{"domain_id": msg.DestinationDomainID, "message_id": msg.ID},
		)
	}
	if r.deferred {
		r.mu.Lock()
		r.pending = append(r.pending, cloneMessage(msg))
		r.mu.Unlock()
		return nil
	}
	r.deliver(ctx, receiver, msg)
	return nil
}

// Flush delivers every pending message in send order and reports how
// many were handed to a receiver.
func (r *MemoryRelay) Flush(ctx context.Context) (int, error) {
	if r == nil {
		return 0, transportError("transport: relay is nil", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	delivered := 0
	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return delivered, transportWrapError(err, goerrors.CategoryOperation, "transport: flush interrupted", http.StatusServiceUnavailable, nil)
			}
		}
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return delivered, nil
		}
		msg := r.pending[0]
		r.pending = r.pending[1:]
		receiver, ok := r.receivers[newRouteKey(msg.DestinationDomainID, msg.DestinationAddress)]
		r.mu.Unlock()

		if !ok {
			r.record(Delivery{
				Message: msg,
				Err: transportError("transport: receiver unregistered before delivery", goerrors.CategoryNotFound, http.StatusNotFound, map[string]any{
					"message_id": msg.ID,
				}),
				DeliveredAt: r.now(),
			})
			continue
		}
		r.deliver(ctx, receiver, msg)
		delivered++
	}
}

func (r *MemoryRelay) Pending() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *MemoryRelay) Deliveries() []Delivery {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *MemoryRelay) deliver(ctx context.Context, receiver core.MessageReceiver, msg core.OutboundMessage) {
	result, err := receiver.ReceiveMessage(ctx, core.InboundMessage{
		SourceDomainID: msg.SourceDomainID,
		SourceAddress:  msg.SourceAddress,
		Payload:        append([]byte(nil), msg.Payload...),
	})
	r.record(Delivery{Message: msg, Result: result, Err: err, DeliveredAt: r.now()})
}

func (r *MemoryRelay) record(delivery Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery)
}

func (r *MemoryRelay) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func newRouteKey(domainID uint32, address string) routeKey {
	return routeKey{domainID: domainID, address: core.NormalizeAddress(address)}
}

func cloneMessage(msg core.OutboundMessage) core.OutboundMessage {
	cloned := msg
	cloned.Payload = append([]byte(nil), msg.Payload...)
	cloned.FeeBudget = core.CloneAmount(msg.FeeBudget)
	return cloned
}

var _ core.MessagingEndpoint = (*MemoryRelay)(nil)
