// Package store provides the data models shared across the pipeline.
package store

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Side values carried by the activity feed.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// DefaultLiquidityThreshold is the percent applied when a subscriber never set one.
const DefaultLiquidityThreshold = 5.0

// TradeEvent represents a single executed trade from the Polymarket activity feed.
type TradeEvent struct {
	// AssetID is the outcome token ID (CLOB token_id)
	AssetID string

	// ConditionID is the market condition ID
	ConditionID string

	// Side is BUY or SELL
	Side string

	// Size is the number of shares
	Size float64

	// Price is the execution price (0-1 range for prediction markets)
	Price float64

	// Outcome is the outcome label, e.g. Yes or No
	Outcome string

	// Title is the market title
	Title string

	// EventSlug identifies the parent event page
	EventSlug string

	// MarketSlug identifies the market page
	MarketSlug string

	// ProxyWallet is the trader's wallet address
	ProxyWallet string

	// Name is the trader's public profile name (may be empty)
	Name string

	// Pseudonym is the generated display name (may be empty)
	Pseudonym string

	// TransactionHash is the on-chain transaction hash (if available)
	TransactionHash string

	// Timestamp is when the trade occurred
	Timestamp time.Time
}

// Value returns the USD value of the trade (size × price).
func (e TradeEvent) Value() float64 {
	v := e.Size * e.Price
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// IsBuy reports whether the event is a BUY-side trade.
func (e TradeEvent) IsBuy() bool {
	return e.Side == SideBuy
}

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a point-in-time order book for one asset.
type OrderBook struct {
	AssetID string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// TotalDepth returns the USD depth of both sides of the book.
func (b *OrderBook) TotalDepth() decimal.Decimal {
	total := decimal.Zero
	if b == nil {
		return total
	}
	for _, lvl := range b.Bids {
		total = total.Add(lvl.Price.Mul(lvl.Size))
	}
	for _, lvl := range b.Asks {
		total = total.Add(lvl.Price.Mul(lvl.Size))
	}
	return total
}

// Subscriber is a Telegram chat that receives alerts.
type Subscriber struct {
	ID int64

	// BudgetThreshold is the minimum trade value in USD. +Inf means unset.
	BudgetThreshold float64

	// LiquidityThreshold is the minimum liquidity percent. +Inf means unset.
	LiquidityThreshold float64

	// MaxMarketsTraded caps the trader's market count; 0 disables the cap.
	MaxMarketsTraded int

	MonitoringActive bool
}

// LiquiditySatisfied reports whether percent meets the subscriber's liquidity threshold.
// When zeroDisables is set, a threshold of exactly 0 never matches.
func (s Subscriber) LiquiditySatisfied(percent float64, zeroDisables bool) bool {
	if zeroDisables && s.LiquidityThreshold == 0 {
		return false
	}
	return s.LiquidityThreshold <= percent
}

// Triggers returns the conditions the trade satisfies for this subscriber.
func (s Subscriber) Triggers(tradeValue, liquidityPercent float64, zeroDisables bool) Trigger {
	var t Trigger
	if tradeValue >= s.BudgetThreshold {
		t |= TriggerBudget
	}
	if s.LiquiditySatisfied(liquidityPercent, zeroDisables) {
		t |= TriggerLiquidity
	}
	return t
}

// Qualifies reports whether the subscriber is a candidate for the trade.
func (s Subscriber) Qualifies(tradeValue, liquidityPercent float64, zeroDisables bool) bool {
	return s.MonitoringActive && !s.Triggers(tradeValue, liquidityPercent, zeroDisables).Empty()
}

// Trigger is the set of conditions that caused an alert.
type Trigger uint8

const (
	TriggerBudget Trigger = 1 << iota
	TriggerLiquidity
)

// Empty reports whether no condition is set.
func (t Trigger) Empty() bool { return t == 0 }

// Has reports whether all conditions in o are set.
func (t Trigger) Has(o Trigger) bool { return t&o == o }

func (t Trigger) String() string {
	switch {
	case t.Has(TriggerBudget | TriggerLiquidity):
		return "budget + liquidity"
	case t.Has(TriggerBudget):
		return "budget only"
	case t.Has(TriggerLiquidity):
		return "liquidity only"
	default:
		return "none"
	}
}

// AlertMatch is a subscriber paired with a trade it should be alerted about.
type AlertMatch struct {
	Subscriber       Subscriber
	Event            TradeEvent
	TradeValue       float64
	LiquidityPercent float64
	MarketsTraded    int
	Trigger          Trigger
}

// DeliveryResult classifies the outcome of a send.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	TransientFailure
	PermanentFailure
)

func (r DeliveryResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Alert records one dispatch attempt.
type Alert struct {
	ID           string
	SubscriberID int64
	Title        string
	Wallet       string
	ValueUSD     float64
	Liquidity    float64
	Trigger      Trigger
	Result       DeliveryResult
	SentAt       time.Time
}
