package port

import (
	"context"
	"io"

	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/shopspring/decimal"
)

// DistanceResolver is the external distance collaborator used for destination-priced trips
type DistanceResolver interface {
	DistanceKm(ctx context.Context, origin, destination string) (decimal.Decimal, error)
}

// LedgerOwner identifies the owner whose ledger is exported
type LedgerOwner struct {
	Kind entity.OwnerKind
	ID   int64
	Name string
}

// LedgerExporter renders a budget owner's ledger to a document
type LedgerExporter interface {
	Export(ctx context.Context, owner LedgerOwner, entries []*entity.BudgetHistoryEntry, w io.Writer) error
}

// EventPublisher receives domain events once the transaction that raised them has committed
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}
