package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// Outcome is the terminal state of one callback delivery.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
)

// DefaultDuplicateWindow bounds the replay check. Deliveries outside the
// window fall through to normal reconciliation, which is idempotent at
// the transaction level.
const DefaultDuplicateWindow = 5 * time.Minute

// ReconcilerConfig tunes the reconciliation behavior.
type ReconcilerConfig struct {
	DuplicateWindow time.Duration
	DefaultCurrency string
}

// TxRunner executes fn atomically. A nil TxRunner runs fn directly, which
// is fine for stores without transactional semantics.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reconciler turns an inbound callback into a durable delivery record and
// an updated transaction. Processing for one order reference is serialized
// through the Locker; see Process for the state machine.
type Reconciler struct {
	verifier     *SignatureVerifier
	webhooks     webhook.Repository
	transactions transaction.Repository
	locker       Locker
	tx           TxRunner
	notifier     Notifier
	window       time.Duration
	currency     string
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewReconciler(
	verifier *SignatureVerifier,
	webhooks webhook.Repository,
	transactions transaction.Repository,
	locker Locker,
	tx TxRunner,
	notifier Notifier,
	cfg ReconcilerConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Reconciler {
	window := cfg.DuplicateWindow
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = "TZS"
	}
	return &Reconciler{
		verifier:     verifier,
		webhooks:     webhooks,
		transactions: transactions,
		locker:       locker,
		tx:           tx,
		notifier:     notifier,
		window:       window,
		currency:     currency,
		metrics:      metrics,
		logger:       logger,
	}
}

// Process runs one delivery through the state machine:
//
//	verify signature -> persist delivery -> duplicate check ->
//	upsert transaction -> mark processed -> notify
//
// Signature and payload rejections happen before anything is persisted.
// A detected replay resolves as OutcomeDuplicate without touching the
// transaction. Failures after the delivery row exists are recorded on
// that row and surfaced to the caller; the row is never rolled back.
func (r *Reconciler) Process(ctx context.Context, rawBody []byte, headers webhook.Headers) (Outcome, error) {
	start := time.Now()

	if err := r.verifier.Verify(rawBody, headers.Signature); err != nil {
		r.observe("rejected", start)
		return "", err
	}

	payload, orderReference, err := parsePayload(rawBody)
	if err != nil {
		r.observe("rejected", start)
		return "", err
	}

	release, err := r.locker.Acquire(ctx, orderReference)
	if err != nil {
		r.observe("error", start)
		return "", fmt.Errorf("acquire order lock: %w", err)
	}

	delivery, outcome, err := r.reconcileLocked(ctx, rawBody, headers, payload, orderReference)
	release()

	if err != nil {
		r.observe("error", start)
		return "", err
	}
	if outcome == OutcomeDuplicate {
		r.observe("duplicate", start)
		return outcome, nil
	}

	// Notification happens outside the lock and never fails the callback.
	if r.notifier != nil {
		_ = r.notifier.PaymentReceived(ctx, delivery)
	}

	r.observe("success", start)
	return OutcomeSuccess, nil
}

func (r *Reconciler) reconcileLocked(ctx context.Context, rawBody []byte, headers webhook.Headers, payload map[string]any, orderReference string) (*webhook.Delivery, Outcome, error) {
	delivery := webhook.NewDelivery(
		orderReference,
		eventTypeFromPayload(payload),
		json.RawMessage(rawBody),
		headers,
		r.verifier.Matches(rawBody, headers.Signature),
	)
	if err := r.webhooks.Create(ctx, delivery); err != nil {
		return nil, "", fmt.Errorf("persist delivery: %w", err)
	}

	cutoff := time.Now().Add(-r.window)
	prior, err := r.webhooks.FindProcessedSince(ctx, orderReference, delivery.ID, cutoff)
	if err != nil {
		return delivery, "", r.recordFailure(ctx, delivery, fmt.Errorf("duplicate check: %w", err))
	}
	if prior != nil {
		r.logger.Info().
			Str("order_reference", orderReference).
			Str("delivery_id", delivery.ID.String()).
			Str("prior_delivery_id", prior.ID.String()).
			Msg("duplicate callback within window")
		delivery.MarkDuplicate(prior.ID)
		if err := r.webhooks.Update(ctx, delivery); err != nil {
			r.logger.Error().Err(err).
				Str("delivery_id", delivery.ID.String()).
				Msg("failed to mark duplicate delivery")
		}
		return delivery, OutcomeDuplicate, nil
	}

	// The transaction upsert and the processed mark commit together; the
	// delivery row itself stays regardless of the outcome.
	err = r.runInTx(ctx, func(txCtx context.Context) error {
		if err := r.upsertTransaction(txCtx, payload, orderReference); err != nil {
			return err
		}
		delivery.MarkProcessed(time.Now())
		if err := r.webhooks.Update(txCtx, delivery); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return delivery, "", r.recordFailure(ctx, delivery, err)
	}

	return delivery, OutcomeSuccess, nil
}

func (r *Reconciler) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.tx == nil {
		return fn(ctx)
	}
	return r.tx.WithTransaction(ctx, fn)
}

// upsertTransaction applies the callback to the transaction matched by
// order reference, creating it with defaults when it does not exist yet.
// Status is last-write-wins; ordering is the lock's job.
func (r *Reconciler) upsertTransaction(ctx context.Context, payload map[string]any, orderReference string) error {
	now := time.Now()

	t, err := r.transactions.GetByOrderReference(ctx, orderReference)
	switch {
	case err == nil:
		status := t.Status
		if s, ok := stringField(payload, "status"); ok {
			status = transaction.NormalizeStatus(s)
		}
		t.ApplyCallback(status, payload, now)
		if err := r.transactions.Update(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return nil

	case errors.Is(err, domainErrors.ErrTransactionNotFound):
		t := r.transactionFromPayload(payload, orderReference)
		status := transaction.StatusPending
		if s, ok := stringField(payload, "status"); ok {
			status = transaction.NormalizeStatus(s)
		}
		t.ApplyCallback(status, payload, now)
		if err := r.transactions.Create(ctx, t); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("load transaction: %w", err)
	}
}

func (r *Reconciler) transactionFromPayload(payload map[string]any, orderReference string) *transaction.Transaction {
	channel, _ := stringField(payload, "channel")

	currency := r.currency
	if c, ok := stringField(payload, "collectedCurrency"); ok {
		currency = c
	} else if c, ok := stringField(payload, "currency"); ok {
		currency = c
	}

	var cents int64
	if v, ok := payload["collectedAmount"]; ok {
		cents, _ = amountToCents(v)
	} else if v, ok := payload["amount"]; ok {
		cents, _ = amountToCents(v)
	}

	t := &transaction.Transaction{
		ID:             uuid.New(),
		Type:           transaction.TypePayment,
		Channel:        channel,
		OrderReference: orderReference,
		Amount:         transaction.Amount{ValueCents: cents, Currency: currency},
		Status:         transaction.StatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return t
}

func (r *Reconciler) recordFailure(ctx context.Context, delivery *webhook.Delivery, cause error) error {
	r.logger.Error().Err(cause).
		Str("order_reference", delivery.OrderReference).
		Str("delivery_id", delivery.ID.String()).
		Msg("callback reconciliation failed")

	delivery.RecordFailure(cause.Error())
	if err := r.webhooks.Update(ctx, delivery); err != nil {
		r.logger.Error().Err(err).
			Str("delivery_id", delivery.ID.String()).
			Msg("failed to record delivery failure")
	}
	if r.metrics != nil {
		r.metrics.WebhookRetries.Inc()
	}
	if r.notifier != nil {
		r.notifier.ProcessingFailed(ctx, delivery, cause.Error())
	}
	return cause
}

func (r *Reconciler) observe(outcome string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.WebhooksReceived.WithLabelValues(outcome).Inc()
	r.metrics.ReconciliationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// parsePayload decodes the raw body and extracts the order reference,
// accepting both camelCase and snake_case key names.
func parsePayload(rawBody []byte) (map[string]any, string, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, "", domainErrors.ErrInvalidPayload
	}

	ref, ok := stringField(payload, "orderReference")
	if !ok {
		ref, ok = stringField(payload, "order_reference")
	}
	if !ok || ref == "" {
		return nil, "", domainErrors.ErrOrderReferenceRequired
	}
	return payload, ref, nil
}

func eventTypeFromPayload(payload map[string]any) string {
	if et, ok := stringField(payload, "eventType"); ok {
		return et
	}
	if et, ok := stringField(payload, "event_type"); ok {
		return et
	}
	return webhook.DefaultEventType
}

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// amountToCents converts a payload amount, which may arrive as a JSON
// number or a decimal string, to cents.
func amountToCents(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return transaction.CentsFromFloat(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return transaction.CentsFromFloat(f), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return transaction.CentsFromFloat(f), true
	default:
		return 0, false
	}
}
