package domain

import "context"

// OrderRequest is the bracket order handed to an execution venue.
type OrderRequest struct {
	Pair        string
	Side        Side
	Contracts   int64
	StopPrice   float64
	TargetPrice float64
}

// Fill is the venue's answer to a submitted order.
type Fill struct {
	OrderID     string
	FilledPrice float64
}

// Execution abstracts the order sink. The Ledger's lifecycle logic is
// identical regardless of which implementation is active; the venue is
// selected once at startup and injected.
type Execution interface {
	// SubmitOrder places a bracket order and returns the fill.
	SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error)

	// Name identifies the venue for logs and metrics ("paper", "coinbase").
	Name() string
}
