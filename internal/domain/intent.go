// Package domain holds the core types of the order dispatch and
// reconciliation engine: intent rows, order specs, positions and the
// trade ledger.
package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the reverse side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SideForTable derives the order side from an intent table name.
// BUY-prefixed tables carry buy intents, SELL-prefixed tables sell intents.
func SideForTable(name string) (Side, bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "BUY"):
		return SideBuy, true
	case strings.HasPrefix(upper, "SELL"):
		return SideSell, true
	}
	return "", false
}

// OrderType is the dispatch tag of an intent row. The set is closed:
// ParseOrderType rejects anything not listed here.
type OrderType string

const (
	OrderTypeMarket      OrderType = "MKT"
	OrderTypeMarketTrail OrderType = "MKT-ATCH-LIMIT"
	OrderTypeLimitTrail  OrderType = "LMT-ATTCH-TRAIL-LIMIT"
	OrderTypeAttachTrail OrderType = "ATCH-LMT"
	OrderTypeRemoveLimit OrderType = "REMOVE-LIMIT-ORDER"
	OrderTypeClose       OrderType = "CLOSE"
)

// ParseOrderType maps a raw table cell to an OrderType. Matching is
// case-insensitive; unknown tags are an error rather than a silent skip.
func ParseOrderType(raw string) (OrderType, error) {
	tag := OrderType(strings.ToUpper(strings.TrimSpace(raw)))
	switch tag {
	case OrderTypeMarket, OrderTypeMarketTrail, OrderTypeLimitTrail,
		OrderTypeAttachTrail, OrderTypeRemoveLimit, OrderTypeClose:
		return tag, nil
	}
	return "", fmt.Errorf("domain.ParseOrderType: unknown order type %q", raw)
}

// ExecutionFlag marks whether a row is ready for dispatch. After a row has
// been dispatched the flag is cleared to the blank sentinel so the next run
// leaves it alone.
type ExecutionFlag string

const (
	ExecPending  ExecutionFlag = "PENDING"
	ExecTransmit ExecutionFlag = "TRANSMIT"
	ExecCleared  ExecutionFlag = " "
)

// Transmit reports whether the flag selects the row for dispatch.
func (f ExecutionFlag) Transmit() bool {
	return strings.ToUpper(strings.TrimSpace(string(f))) == string(ExecTransmit)
}

// TradingMode selects the live or the paper brokerage session and, with it,
// the matching storage file.
type TradingMode string

const (
	ModeLive  TradingMode = "live"
	ModePaper TradingMode = "paper"
)

// ParseTradingMode validates a mode string from config or flags.
func ParseTradingMode(raw string) (TradingMode, error) {
	switch TradingMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeLive:
		return ModeLive, nil
	case ModePaper:
		return ModePaper, nil
	}
	return "", fmt.Errorf("domain.ParseTradingMode: unknown trading mode %q", raw)
}

// DefaultTrailPercent is applied when a row carries no trail percentage.
const DefaultTrailPercent = 4.0

// OrderIntent is one row of an intent table. Amount and Quantity are
// mutually refinable: when Quantity is nil it is computed from Amount and
// the resolved price. OrderType is kept raw so that an unknown tag can be
// rejected per row at dispatch time instead of failing the whole table read.
type OrderIntent struct {
	Ticker       string
	Amount       *float64
	Quantity     *float64
	OrderType    string
	TrailPercent float64
	Status       string
	Execution    ExecutionFlag
}

// QuantityValue returns the declared quantity, or 0 when unset.
func (r OrderIntent) QuantityValue() float64 {
	if r.Quantity == nil {
		return 0
	}
	return *r.Quantity
}

// HasQuantity reports whether the row declares a share count.
func (r OrderIntent) HasQuantity() bool {
	return r.Quantity != nil && *r.Quantity != 0
}
