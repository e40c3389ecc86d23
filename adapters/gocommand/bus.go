package gocommand

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// QueueResolverKey is the registry resolver that mirrors streaming commands
// into a go-job queue registry.
const QueueResolverKey = "queue"

// Bus owns the go-command registry and the dispatcher subscriptions of the
// streaming surface. Close releases every subscription the bus made.
type Bus struct {
	registry   *command.Registry
	runnerOpts []runner.Option

	mu   sync.Mutex
	subs Subscriptions
}

func NewBus(registry *command.Registry, runnerOpts ...runner.Option) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry, runnerOpts: append([]runner.Option(nil), runnerOpts...)}
}

// MirrorToQueue makes Initialize copy every registered command into
// queueRegistry so it can also run from a go-job worker. Queries stay
// dispatcher-only.
func (b *Bus) MirrorToQueue(queueRegistry *jobqueuecommand.Registry) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	if b.registry.HasResolver(QueueResolverKey) {
		return fmt.Errorf("gocommand: queue resolver already configured")
	}
	mirror := jobqueuecommand.QueueResolver(queueRegistry)
	return b.registry.AddResolver(QueueResolverKey, func(cmd any, meta command.CommandMeta, registry *command.Registry) error {
		if !reflect.ValueOf(cmd).MethodByName("Execute").IsValid() {
			return nil
		}
		return mirror(cmd, meta, registry)
	})
}

func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.Initialize()
}

// Subscriptions reports how many handlers are currently subscribed.
func (b *Bus) Subscriptions() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	subs.Unsubscribe()
}

func (b *Bus) track(sub commanddispatcher.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

// Subscriptions groups dispatcher subscriptions so they can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

func registerCommand[T any](b *Bus, cmd command.Commander[T]) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	if err := requireMessageType[T](); err != nil {
		return nil, err
	}
	sub := commanddispatcher.SubscribeCommand(cmd, b.runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		Subscriptions{sub}.Unsubscribe()
		return nil, err
	}
	b.track(sub)
	return sub, nil
}

func registerQuery[T any, R any](b *Bus, qry command.Querier[T, R]) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	if err := requireMessageType[T](); err != nil {
		return nil, err
	}
	sub := commanddispatcher.SubscribeQuery(qry, b.runnerOpts...)
	if err := b.registry.RegisterCommand(qry); err != nil {
		Subscriptions{sub}.Unsubscribe()
		return nil, err
	}
	b.track(sub)
	return sub, nil
}

// requireMessageType rejects handlers whose message has no routable type.
func requireMessageType[T any]() error {
	var zero T
	msg, ok := any(zero).(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T must implement Type() string", zero)
	}
	if strings.TrimSpace(msg.Type()) == "" {
		return fmt.Errorf("gocommand: %T has an empty message type", zero)
	}
	return nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}
