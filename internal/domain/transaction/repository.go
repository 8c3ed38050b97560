package transaction

import "context"

// ListFilter holds optional filters for listing transactions.
type ListFilter struct {
	Type      *Type
	Status    *Status
	Channel   *string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Repository defines the persistence contract for transactions.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByOrderReference(ctx context.Context, orderReference string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	List(ctx context.Context, f ListFilter) ([]*Transaction, error)
}
