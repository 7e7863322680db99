package ibkr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// IB order-type tags on the wire.
const (
	wireMarket    = "MKT"
	wireLimit     = "LMT"
	wireTrailStop = "TRAILLMT"
)

// SubmitMarket places a GTC market order and waits for acknowledgment.
func (c *Client) SubmitMarket(ctx context.Context, contract domain.Contract, side domain.Side, qty float64) (domain.OrderSubmission, error) {
	return c.submit(ctx, orderTicket{
		AcctID:    c.account,
		ConID:     contract.ConID,
		ClientOID: uuid.New().String(),
		OrderType: wireMarket,
		Side:      string(side),
		Quantity:  qty,
		TIF:       "GTC",
	})
}

// SubmitLimit places a GTC limit order at the given price, working outside
// regular hours like the rest of the flow.
func (c *Client) SubmitLimit(ctx context.Context, contract domain.Contract, side domain.Side, qty, limitPrice float64) (domain.OrderSubmission, error) {
	return c.submit(ctx, orderTicket{
		AcctID:     c.account,
		ConID:      contract.ConID,
		ClientOID:  uuid.New().String(),
		OrderType:  wireLimit,
		Side:       string(side),
		Quantity:   qty,
		Price:      limitPrice,
		TIF:        "GTC",
		OutsideRTH: true,
	})
}

// SubmitTrailingStop places the protective trailing stop-limit leg.
func (c *Client) SubmitTrailingStop(ctx context.Context, contract domain.Contract, spec domain.TrailingStopSpec, qty float64) (domain.OrderSubmission, error) {
	return c.submit(ctx, orderTicket{
		AcctID:       c.account,
		ConID:        contract.ConID,
		ClientOID:    uuid.New().String(),
		OrderType:    wireTrailStop,
		Side:         string(spec.Action),
		Quantity:     qty,
		Price:        spec.LimitPrice(),
		AuxPrice:     spec.TrailStopPrice,
		TrailingAmt:  spec.TrailPercent,
		TrailingType: "%",
		TIF:          "GTC",
		OutsideRTH:   true,
	})
}

// submit posts the ticket, walks the gateway's confirmation dialogue, then
// blocks until the order is acknowledged or the ack timeout elapses.
func (c *Client) submit(ctx context.Context, ticket orderTicket) (domain.OrderSubmission, error) {
	payload := map[string]any{"orders": []orderTicket{ticket}}

	var replies []orderReply
	path := fmt.Sprintf("/iserver/account/%s/orders", c.account)
	if err := c.post(ctx, path, payload, &replies); err != nil {
		return domain.OrderSubmission{}, fmt.Errorf("ibkr.submit: %w", err)
	}

	// Precautionary warnings (size, price caps) come back as questions that
	// must be confirmed before the order reaches the book.
	for hop := 0; hop < 4; hop++ {
		if len(replies) == 0 {
			return domain.OrderSubmission{}, fmt.Errorf("ibkr.submit: empty reply")
		}
		reply := replies[0]
		if reply.OrderID != "" {
			return c.awaitAck(ctx, reply.OrderID, mapOrderStatus(reply.OrderStatus))
		}
		if reply.ID == "" {
			return domain.OrderSubmission{}, fmt.Errorf("ibkr.submit: unrecognised reply %+v", reply)
		}
		slog.Debug("ibkr: confirming order warning", "id", reply.ID, "messages", strings.Join(reply.Messages, "; "))
		if err := c.post(ctx, "/iserver/reply/"+reply.ID, map[string]any{"confirmed": true}, &replies); err != nil {
			return domain.OrderSubmission{}, fmt.Errorf("ibkr.submit: confirm %s: %w", reply.ID, err)
		}
	}
	return domain.OrderSubmission{}, fmt.Errorf("ibkr.submit: confirmation dialogue did not terminate")
}

// awaitAck is the wait-for-acknowledgment primitive: it watches the order
// until a terminal-so-far status arrives, preferring the websocket stream
// and falling back to REST polls, bounded by the ack timeout.
func (c *Client) awaitAck(ctx context.Context, orderID string, initial domain.SubmissionStatus) (domain.OrderSubmission, error) {
	sub := domain.OrderSubmission{OrderID: orderID, Status: initial}
	if settled(initial) {
		return sub, nil
	}

	deadline := time.NewTimer(c.ackTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return sub, ctx.Err()
		case <-deadline.C:
			return sub, fmt.Errorf("ibkr.awaitAck %s: %w", orderID, domain.ErrGatewayTimeout)
		case <-poll.C:
			if c.stream != nil {
				if st, ok := c.stream.status(orderID); ok && settled(st) {
					sub.Status = st
					return sub, nil
				}
			}
			st, err := c.orderStatus(ctx, orderID)
			if err != nil {
				slog.Debug("ibkr: order status poll failed", "order_id", orderID, "err", err)
				continue
			}
			if settled(st) {
				sub.Status = st
				return sub, nil
			}
		}
	}
}

// settled reports whether a status ends the ack wait.
func settled(st domain.SubmissionStatus) bool {
	return st != domain.StatusUnknown
}

// orderStatus reads one order's current status over REST.
func (c *Client) orderStatus(ctx context.Context, orderID string) (domain.SubmissionStatus, error) {
	var out struct {
		OrderStatus string `json:"order_status"`
	}
	if err := c.get(ctx, "/iserver/account/order/status/"+orderID, &out); err != nil {
		return domain.StatusUnknown, err
	}
	return mapOrderStatus(out.OrderStatus), nil
}

// mapOrderStatus folds the gateway's order states into the submission
// taxonomy. PreSubmitted means the order is accepted and held (outside RTH).
func mapOrderStatus(raw string) domain.SubmissionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "submitted", "presubmitted", "pendingsubmit":
		return domain.StatusSubmitted
	case "filled":
		return domain.StatusFilled
	case "cancelled", "pendingcancel":
		return domain.StatusCancelled
	case "rejected", "inactive":
		return domain.StatusRejected
	}
	return domain.StatusUnknown
}

// OpenOrders returns the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var resp liveOrdersResponse
	if err := c.get(ctx, "/iserver/account/orders", &resp); err != nil {
		return nil, fmt.Errorf("ibkr.OpenOrders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order := domain.OpenOrder{
			OrderID:   fmt.Sprintf("%d", o.OrderID),
			Ticker:    o.Ticker,
			OrderType: o.OrderType,
			Side:      domain.Side(strings.ToUpper(o.Side)),
			Quantity:  o.Quantity,
			Price:     o.Price,
			Status:    mapOrderStatus(o.Status),
		}
		if strings.EqualFold(o.TrailingType, "%") {
			order.TrailPercent = o.TrailingAmt
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// cancellable identifies the resting order kinds the dispatch flow manages.
func cancellable(orderType string) bool {
	switch strings.ToUpper(strings.TrimSpace(orderType)) {
	case "LIMIT", "LMT", "TRAILING_STOP_LIMIT", "TRAILLMT", "TRAIL LIMIT":
		return true
	}
	return false
}

// CancelOrders cancels resting limit and trailing-stop orders for the
// ticker. No matching order is a no-op success.
func (c *Client) CancelOrders(ctx context.Context, ticker string) (int, error) {
	orders, err := c.OpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("ibkr.CancelOrders %s: %w", ticker, err)
	}

	cancelled := 0
	for _, o := range orders {
		if !strings.EqualFold(o.Ticker, ticker) || !o.Active() || !cancellable(o.OrderType) {
			continue
		}
		path := fmt.Sprintf("/iserver/account/%s/order/%s", c.account, o.OrderID)
		if err := c.del(ctx, path, nil); err != nil {
			return cancelled, fmt.Errorf("ibkr.CancelOrders %s: order %s: %w", ticker, o.OrderID, err)
		}
		cancelled++
		slog.Info("ibkr: cancelled resting order", "ticker", ticker, "order_id", o.OrderID, "type", o.OrderType)
	}
	return cancelled, nil
}

// CancelAll cancels every open order on the account.
func (c *Client) CancelAll(ctx context.Context) error {
	orders, err := c.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("ibkr.CancelAll: %w", err)
	}
	for _, o := range orders {
		if !o.Active() {
			continue
		}
		path := fmt.Sprintf("/iserver/account/%s/order/%s", c.account, o.OrderID)
		if err := c.del(ctx, path, nil); err != nil {
			return fmt.Errorf("ibkr.CancelAll: order %s: %w", o.OrderID, err)
		}
		slog.Info("ibkr: cancelled open order", "order_id", o.OrderID, "ticker", o.Ticker)
	}
	return nil
}

// TrailPercent returns the percent of an active trailing-stop order
// protecting the ticker, if one rests.
func (c *Client) TrailPercent(ctx context.Context, ticker string) (float64, bool, error) {
	orders, err := c.OpenOrders(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("ibkr.TrailPercent %s: %w", ticker, err)
	}
	for _, o := range orders {
		if strings.EqualFold(o.Ticker, ticker) && o.Active() && o.TrailPercent > 0 {
			return o.TrailPercent, true, nil
		}
	}
	return 0, false, nil
}
