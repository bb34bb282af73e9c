package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/infra/coinbase"
)

// Live submits bracket orders to the Coinbase Advanced Trade REST API,
// authenticating with short-lived JWTs minted from the API key pair.
type Live struct {
	restURL string
	creds   coinbase.Credentials
	client  *http.Client
}

// NewLive creates a live venue. The private key stays in memory only.
func NewLive(restURL, keyName, privatePEM string) *Live {
	return &Live{
		restURL: restURL,
		creds:   coinbase.Credentials{KeyName: keyName, PrivatePEM: privatePEM},
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *Live) Name() string { return "coinbase" }

type createOrderResponse struct {
	Success         bool `json:"success"`
	SuccessResponse struct {
		OrderID string `json:"order_id"`
	} `json:"success_response"`
	ErrorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"error_response"`
	OrderID            string `json:"order_id"`
	AverageFilledPrice string `json:"average_filled_price"`
}

// SubmitOrder places a market IOC order with an attached bracket. A zero
// FilledPrice means the venue did not report the average fill; the caller
// falls back to the last cached price.
func (l *Live) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Fill, error) {
	side := "BUY"
	if req.Side == domain.SideShort {
		side = "SELL"
	}

	payload := map[string]any{
		"client_order_id": uuid.New().String(),
		"product_id":      req.Pair,
		"side":            side,
		"order_configuration": map[string]any{
			"market_market_ioc": map[string]any{
				"base_size": strconv.FormatInt(req.Contracts, 10),
			},
		},
		"attached_order_configuration": map[string]any{
			"trigger_bracket_gtc": map[string]any{
				"stop_trigger_price": strconv.FormatFloat(req.StopPrice, 'f', -1, 64),
				"limit_price":        strconv.FormatFloat(req.TargetPrice, 'f', -1, 64),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.restURL+"/api/v3/brokerage/orders", bytes.NewReader(body))
	if err != nil {
		return domain.Fill{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := l.creds.Authenticate(httpReq); err != nil {
		return domain.Fill{}, err
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Fill{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Fill{}, fmt.Errorf("order rejected: status %d: %s", resp.StatusCode, raw)
	}

	var decoded createOrderResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.Fill{}, fmt.Errorf("decode order response: %w", err)
	}

	orderID := decoded.SuccessResponse.OrderID
	if orderID == "" {
		orderID = decoded.OrderID
	}
	if !decoded.Success && orderID == "" {
		return domain.Fill{}, fmt.Errorf("order rejected: %s (%s)", decoded.ErrorResponse.Error, decoded.ErrorResponse.Message)
	}

	fill := domain.Fill{OrderID: orderID}
	if decoded.AverageFilledPrice != "" {
		if p, perr := strconv.ParseFloat(decoded.AverageFilledPrice, 64); perr == nil {
			fill.FilledPrice = p
		}
	}

	slog.Info("LIVE EXECUTION: Order Submitted",
		slog.String("id", orderID),
		slog.String("pair", req.Pair),
		slog.String("side", side),
		slog.Int64("contracts", req.Contracts))
	return fill, nil
}
