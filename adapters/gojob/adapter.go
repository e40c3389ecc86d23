package gojob

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDDeliverMessage = "streaming.message.deliver"

const (
	paramMessageID           = "message_id"
	paramSourceDomainID      = "source_domain_id"
	paramSourceAddress       = "source_address"
	paramDestinationDomainID = "destination_domain_id"
	paramDestinationAddress  = "destination_address"
	paramPayload             = "payload_hex"
	paramFeeBudget           = "fee_budget"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
// Once MaxAttempts is reached a retry becomes a dead letter, or a plain
// failure when DeadLetterOnMax is off.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = p.terminalDisposition()
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
	}
	return out
}

func (p RetryPolicy) terminalDisposition() queue.NackDisposition {
	if p.DeadLetterOnMax {
		return queue.NackDispositionDeadLetter
	}
	return queue.NackDispositionFailed
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// ToExecutionMessage maps an outbound gateway message to a go-job
// delivery. The message id doubles as the idempotency key.
func ToExecutionMessage(msg core.OutboundMessage) *job.ExecutionMessage {
	params := map[string]any{
		paramMessageID:           strings.TrimSpace(msg.ID),
		paramSourceDomainID:      strconv.FormatUint(uint64(msg.SourceDomainID), 10),
		paramSourceAddress:       strings.TrimSpace(msg.SourceAddress),
		paramDestinationDomainID: strconv.FormatUint(uint64(msg.DestinationDomainID), 10),
		paramDestinationAddress:  strings.TrimSpace(msg.DestinationAddress),
		paramPayload:             hex.EncodeToString(msg.Payload),
	}
	if msg.FeeBudget != nil {
		params[paramFeeBudget] = msg.FeeBudget.Dec()
	}
	return &job.ExecutionMessage{
		JobID:          JobIDDeliverMessage,
		ScriptPath:     JobIDDeliverMessage,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(msg.ID),
		DedupPolicy:    job.DedupPolicyDrop,
	}
}

// FromExecutionMessage rebuilds the outbound message carried by a go-job
// delivery.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.OutboundMessage, error) {
	if msg == nil {
		return core.OutboundMessage{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDDeliverMessage {
		return core.OutboundMessage{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	sourceDomain, err := uint32Param(msg.Parameters, paramSourceDomainID)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	destinationDomain, err := uint32Param(msg.Parameters, paramDestinationDomainID)
	if err != nil {
		return core.OutboundMessage{}, err
	}
	payload, err := hex.DecodeString(stringParam(msg.Parameters, paramPayload))
	if err != nil {
		return core.OutboundMessage{}, fmt.Errorf("gojob: decode payload: %w", err)
	}
	out := core.OutboundMessage{
		ID:                  stringParam(msg.Parameters, paramMessageID),
		SourceDomainID:      sourceDomain,
		SourceAddress:       stringParam(msg.Parameters, paramSourceAddress),
		DestinationDomainID: destinationDomain,
		DestinationAddress:  stringParam(msg.Parameters, paramDestinationAddress),
		Payload:             payload,
	}
	if out.ID == "" {
		out.ID = strings.TrimSpace(msg.IdempotencyKey)
	}
	if fee := stringParam(msg.Parameters, paramFeeBudget); fee != "" {
		budget, feeErr := uint256.FromDecimal(fee)
		if feeErr != nil {
			return core.OutboundMessage{}, fmt.Errorf("gojob: decode fee budget: %w", feeErr)
		}
		out.FeeBudget = budget
	}
	return out, nil
}

// QueueEndpoint is a MessagingEndpoint that hands outbound messages to a
// go-job queue for asynchronous delivery.
type QueueEndpoint struct {
	enqueuer queue.Enqueuer
}

func NewQueueEndpoint(enqueuer queue.Enqueuer) *QueueEndpoint {
	return &QueueEndpoint{enqueuer: enqueuer}
}

func (e *QueueEndpoint) Send(ctx context.Context, msg core.OutboundMessage) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if len(msg.Payload) == 0 {
		return fmt.Errorf("gojob: outbound payload is required")
	}
	_, err := e.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
	return err
}

// ReceiverResolver finds the gateway registered for a destination.
type ReceiverResolver interface {
	Resolve(domainID uint32, address string) (core.MessageReceiver, bool)
}

// DeliveryWorker drains queued gateway messages into their destination
// receiver. Rejections the receiver will never accept are dead-lettered;
// everything else is retried within the policy bounds.
type DeliveryWorker struct {
	dequeuer  queue.Dequeuer
	receivers ReceiverResolver
	policy    RetryPolicy
	hook      worker.Hook
	Now       func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewDeliveryWorker(dequeuer queue.Dequeuer, receivers ReceiverResolver, policy RetryPolicy, hook worker.Hook) *DeliveryWorker {
	return &DeliveryWorker{
		dequeuer:  dequeuer,
		receivers: receivers,
		policy:    policy,
		hook:      hook,
		Now:       time.Now,
		attempts:  map[string]int{},
	}
}

// RunOnce dequeues and processes a single delivery.
func (w *DeliveryWorker) RunOnce(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.receivers == nil {
		return fmt.Errorf("gojob: delivery worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	raw := delivery.Message()
	attempt := w.nextAttempt(raw)
	startedAt := w.now()
	event := worker.Event{Message: raw, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}
	w.onStart(ctx, event)

	procErr := w.process(ctx, raw)
	event.Duration = w.now().Sub(startedAt)
	if procErr == nil {
		w.forget(raw)
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = procErr
	opts := queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: procErr.Error()}
	if Retryable(procErr) {
		opts.Disposition = queue.NackDispositionRetry
		opts.Delay = w.policy.delayFor(attempt)
	}
	opts = w.policy.NormalizeAttempt(opts, attempt)
	event.Delay = opts.Delay
	if opts.Disposition == queue.NackDispositionRetry {
		w.onRetry(ctx, event)
	} else {
		w.forget(raw)
		w.onFailure(ctx, event)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return procErr
}

func (w *DeliveryWorker) process(ctx context.Context, raw *job.ExecutionMessage) error {
	msg, err := FromExecutionMessage(raw)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "gojob: malformed delivery").
			WithTextCode(core.ErrorMalformedPayload)
	}
	receiver, ok := w.receivers.Resolve(msg.DestinationDomainID, msg.DestinationAddress)
	if !ok || receiver == nil {
		return goerrors.New(
			fmt.Sprintf("gojob: no receiver for domain %d address %s", msg.DestinationDomainID, msg.DestinationAddress),
			goerrors.CategoryNotFound,
		).WithTextCode(core.ErrorEndpointDispatchFailed)
	}
	_, err = receiver.ReceiveMessage(ctx, core.InboundMessage{
		SourceDomainID: msg.SourceDomainID,
		SourceAddress:  msg.SourceAddress,
		Payload:        msg.Payload,
	})
	return err
}

// Retryable reports whether a failed delivery may succeed on a later
// attempt. Ledger and gateway rejections are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	mapped := core.MapError(err)
	if mapped == nil {
		return true
	}
	switch mapped.Category {
	case goerrors.CategoryConflict:
		return mapped.TextCode == core.ErrorStaleBalance
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return false
	case goerrors.CategoryNotFound:
		return mapped.TextCode != core.ErrorStreamNotFound && mapped.TextCode != core.ErrorNoTrustedPeer
	default:
		return true
	}
}

func (w *DeliveryWorker) nextAttempt(raw *job.ExecutionMessage) int {
	key := attemptKey(raw)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *DeliveryWorker) forget(raw *job.ExecutionMessage) {
	key := attemptKey(raw)
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func attemptKey(raw *job.ExecutionMessage) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(raw.IdempotencyKey)
}

func (w *DeliveryWorker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *DeliveryWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *DeliveryWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *DeliveryWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *DeliveryWorker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

// LoggingHook writes worker lifecycle events to a structured logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "delivery started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "delivery succeeded", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "delivery dead-lettered", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "delivery retry scheduled", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"job_id":      "",
		"attempt":     event.Attempt,
		"duration_ms": event.Duration.Milliseconds(),
	}
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	if msg != nil {
		fields["job_id"] = msg.JobID
		fields["message_id"] = msg.IdempotencyKey
	}
	if event.Delay > 0 {
		fields["delay_ms"] = event.Delay.Milliseconds()
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
		if mapped := core.MapError(event.Err); mapped != nil {
			fields["error_text_code"] = mapped.TextCode
		}
	}

	logger := h.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	switch level {
	case "debug":
		logger.Debug(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	switch typed := params[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func uint32Param(params map[string]any, key string) (uint32, error) {
	raw := stringParam(params, key)
	if raw == "" {
		return 0, fmt.Errorf("gojob: parameter %s is required", key)
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("gojob: parameter %s: %w", key, err)
	}
	return uint32(value), nil
}

var (
	_ core.MessagingEndpoint = (*QueueEndpoint)(nil)
	_ worker.Hook            = (*LoggingHook)(nil)
)
