package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/markremover/futures-oracle/internal/domain"
)

// PriceFunc resolves the latest cached price for a pair.
type PriceFunc func(pair string) (float64, bool)

// Paper simulates order execution: fills at the current cached price with no
// external call. Used for strategy validation before anything touches an
// exchange.
type Paper struct {
	price PriceFunc
}

// NewPaper creates a paper venue backed by the given price source.
func NewPaper(price PriceFunc) *Paper {
	return &Paper{price: price}
}

func (p *Paper) Name() string { return "paper" }

// SubmitOrder fills immediately at the latest price.
func (p *Paper) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Fill, error) {
	price, ok := p.price(req.Pair)
	if !ok {
		return domain.Fill{}, fmt.Errorf("no price available for %s", req.Pair)
	}

	fill := domain.Fill{
		OrderID:     uuid.New().String(),
		FilledPrice: price,
	}
	slog.Info("PAPER EXECUTION: Order Filled",
		slog.String("id", fill.OrderID),
		slog.String("pair", req.Pair),
		slog.String("side", string(req.Side)),
		slog.Float64("price", price),
		slog.Int64("contracts", req.Contracts))
	return fill, nil
}
