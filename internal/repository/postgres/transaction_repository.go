package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/transaction"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"amount":     "amount",
	"status":     "status",
}

const transactionColumns = `id, transaction_type, channel, order_reference, amount, currency, status,
	        reference, description, account_details, metadata,
	        fee, fee_bearer, exchanged, exchange_details,
	        channel_provider, response_code, response_message,
	        request_payload, response_payload,
	        processed_at, created_at, updated_at`

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new transaction. A second insert with the same order
// reference returns ErrDuplicateOrderReference.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	accountDetails, metadata, exchangeDetails, requestPayload, responsePayload, err := marshalTransactionJSON(t)
	if err != nil {
		return err
	}

	amountStr := centsToNumericString(t.Amount.ValueCents)
	var feeStr *string
	if t.FeeCents != nil {
		s := centsToNumericString(*t.FeeCents)
		feeStr = &s
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO clickpesa_transactions
		 (id, transaction_type, channel, order_reference, amount, currency, status,
		  reference, description, account_details, metadata,
		  fee, fee_bearer, exchanged, exchange_details,
		  channel_provider, response_code, response_message,
		  request_payload, response_payload,
		  processed_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		t.ID, string(t.Type), t.Channel, t.OrderReference, amountStr, t.Amount.Currency, string(t.Status),
		t.Reference, t.Description, accountDetails, metadata,
		feeStr, t.FeeBearer, t.Exchanged, exchangeDetails,
		t.ChannelProvider, t.ResponseCode, t.ResponseMessage,
		requestPayload, responsePayload,
		t.ProcessedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateOrderReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByOrderReference retrieves a transaction by its order reference.
func (r *TransactionRepository) GetByOrderReference(ctx context.Context, orderReference string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+`
		 FROM clickpesa_transactions WHERE order_reference = $1`, orderReference))
}

// Update updates an existing transaction.
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	accountDetails, metadata, exchangeDetails, requestPayload, responsePayload, err := marshalTransactionJSON(t)
	if err != nil {
		return err
	}

	var feeStr *string
	if t.FeeCents != nil {
		s := centsToNumericString(*t.FeeCents)
		feeStr = &s
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE clickpesa_transactions SET
		  status=$1, reference=$2, description=$3, account_details=$4, metadata=$5,
		  fee=$6, fee_bearer=$7, exchanged=$8, exchange_details=$9,
		  channel_provider=$10, response_code=$11, response_message=$12,
		  request_payload=$13, response_payload=$14,
		  processed_at=$15, updated_at=$16
		 WHERE id=$17`,
		string(t.Status), t.Reference, t.Description, accountDetails, metadata,
		feeStr, t.FeeBearer, t.Exchanged, exchangeDetails,
		t.ChannelProvider, t.ResponseCode, t.ResponseMessage,
		requestPayload, responsePayload,
		t.ProcessedAt, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

// List lists transactions with optional filters.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM clickpesa_transactions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Type != nil {
		query += fmt.Sprintf(" AND transaction_type = $%d", argIdx)
		args = append(args, string(*f.Type))
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Channel != nil {
		query += fmt.Sprintf(" AND channel = $%d", argIdx)
		args = append(args, *f.Channel)
		argIdx++
	}

	// Strict whitelist for sort column
	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// --- scanning helpers ---

func (r *TransactionRepository) scanTransaction(s scanner) (*transaction.Transaction, error) {
	t := &transaction.Transaction{}
	var (
		txType          string
		amountStr       string
		status          string
		feeStr          *string
		accountDetails  []byte
		metadata        []byte
		exchangeDetails []byte
		requestPayload  []byte
		responsePayload []byte
	)
	err := s.Scan(
		&t.ID, &txType, &t.Channel, &t.OrderReference, &amountStr, &t.Amount.Currency, &status,
		&t.Reference, &t.Description, &accountDetails, &metadata,
		&feeStr, &t.FeeBearer, &t.Exchanged, &exchangeDetails,
		&t.ChannelProvider, &t.ResponseCode, &t.ResponseMessage,
		&requestPayload, &responsePayload,
		&t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = transaction.Type(txType)
	t.Status = transaction.Status(status)

	cents, err := numericStringToCents(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.Amount.ValueCents = cents

	if feeStr != nil {
		fee, err := numericStringToCents(*feeStr)
		if err != nil {
			return nil, fmt.Errorf("parse fee: %w", err)
		}
		t.FeeCents = &fee
	}

	if t.AccountDetails, err = unmarshalJSONMap(accountDetails); err != nil {
		return nil, fmt.Errorf("unmarshal account details: %w", err)
	}
	if t.Metadata, err = unmarshalJSONMap(metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if t.ExchangeDetails, err = unmarshalJSONMap(exchangeDetails); err != nil {
		return nil, fmt.Errorf("unmarshal exchange details: %w", err)
	}
	if t.RequestPayload, err = unmarshalJSONMap(requestPayload); err != nil {
		return nil, fmt.Errorf("unmarshal request payload: %w", err)
	}
	if t.ResponsePayload, err = unmarshalJSONMap(responsePayload); err != nil {
		return nil, fmt.Errorf("unmarshal response payload: %w", err)
	}

	return t, nil
}

func marshalTransactionJSON(t *transaction.Transaction) (accountDetails, metadata, exchangeDetails, requestPayload, responsePayload []byte, err error) {
	if accountDetails, err = marshalJSONMap(t.AccountDetails); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal account details: %w", err)
	}
	if metadata, err = marshalJSONMap(t.Metadata); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if exchangeDetails, err = marshalJSONMap(t.ExchangeDetails); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal exchange details: %w", err)
	}
	if requestPayload, err = marshalJSONMap(t.RequestPayload); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal request payload: %w", err)
	}
	if responsePayload, err = marshalJSONMap(t.ResponsePayload); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal response payload: %w", err)
	}
	return accountDetails, metadata, exchangeDetails, requestPayload, responsePayload, nil
}

func marshalJSONMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
