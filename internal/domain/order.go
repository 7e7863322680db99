package domain

import (
	"math"
	"time"
)

// Contract is a fully qualified tradable instrument. Symbol keeps the
// original (possibly dotted) display form; LocalSymbol carries the broker's
// space-delimited class notation used for lookup.
type Contract struct {
	ConID       int64
	Symbol      string
	LocalSymbol string
	Exchange    string
	Currency    string
}

// Quote is a snapshot of the current market for one instrument.
type Quote struct {
	Last  float64
	Close float64
	Ask   float64
	Bid   float64
}

// Price returns the first positive field in preference order
// last → close → ask → bid, or 0 when the snapshot is empty.
func (q Quote) Price() float64 {
	for _, p := range []float64{q.Last, q.Close, q.Ask, q.Bid} {
		if p > 0 {
			return p
		}
	}
	return 0
}

// SubmissionStatus is the terminal-so-far state of a submit call.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "SUBMITTED"
	StatusFilled    SubmissionStatus = "FILLED"
	StatusCancelled SubmissionStatus = "CANCELLED"
	StatusRejected  SubmissionStatus = "REJECTED"
	StatusUnknown   SubmissionStatus = "UNKNOWN"
)

// OrderSubmission is the ephemeral result of a gateway submit call.
type OrderSubmission struct {
	OrderID string
	Status  SubmissionStatus
}

// Accepted reports whether the broker acknowledged the order.
// Only SUBMITTED and FILLED count as success.
func (s OrderSubmission) Accepted() bool {
	return s.Status == StatusSubmitted || s.Status == StatusFilled
}

// DefaultLimitOffset is the fixed limit-price offset used for trailing
// stop-limit legs and LMT entries.
const DefaultLimitOffset = 0.10

// TrailingStopSpec describes a protective trailing stop-limit order in the
// side opposite to the position it protects.
type TrailingStopSpec struct {
	Action         Side
	TrailPercent   float64
	TrailStopPrice float64
	LimitOffset    float64
}

// NewTrailingStopSpec builds the protective order for a position opened by
// originating at the given price. A BUY position is protected by a SELL
// trail below the price, a SELL (short) position by a BUY trail above it.
func NewTrailingStopSpec(originating Side, price, trailPercent float64) TrailingStopSpec {
	stop := price * (1 + trailPercent/100)
	if originating == SideBuy {
		stop = price * (1 - trailPercent/100)
	}
	return TrailingStopSpec{
		Action:         originating.Opposite(),
		TrailPercent:   trailPercent,
		TrailStopPrice: roundCents(stop),
		LimitOffset:    DefaultLimitOffset,
	}
}

// LimitPrice returns the limit leg for the trailing stop. The offset keeps
// the limit marketable in the fill direction: below the trigger for a SELL
// trail, above it for a BUY trail covering a short.
func (s TrailingStopSpec) LimitPrice() float64 {
	if s.Action == SideBuy {
		return roundCents(s.TrailStopPrice + s.LimitOffset)
	}
	return roundCents(s.TrailStopPrice - s.LimitOffset)
}

// Position is a broker-reported holding. Quantity is signed: positive means
// long, negative short.
type Position struct {
	Ticker      string
	SecType     string
	Quantity    float64
	AverageCost float64
}

// OpenOrder is a resting order as reported by the gateway.
type OpenOrder struct {
	OrderID      string
	Ticker       string
	OrderType    string
	Side         Side
	Quantity     float64
	Price        float64
	TrailPercent float64
	Status       SubmissionStatus
}

// Active reports whether the order is still resting (cancellable).
func (o OpenOrder) Active() bool {
	return o.Status != StatusCancelled && o.Status != StatusFilled
}

// LedgerEntry is one immutable record of an executed action. Notional is the
// cash value of the trade at the recorded price.
type LedgerEntry struct {
	Timestamp time.Time
	Ticker    string
	Action    Side
	Quantity  float64
	Price     float64
	Notional  float64
}

// NewLedgerEntry stamps an entry with the current time and the rounded
// notional value.
func NewLedgerEntry(ticker string, action Side, quantity, price float64) LedgerEntry {
	return LedgerEntry{
		Timestamp: time.Now().UTC(),
		Ticker:    ticker,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Notional:  roundCents(quantity * price),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
