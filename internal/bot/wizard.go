package bot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/polyinsider/hunter/internal/registry"
	"github.com/polyinsider/hunter/internal/store"
)

// Errors returned for unusable wizard input.
var (
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrInvalidPercent   = errors.New("percent must be between 0 and 100")
	ErrInvalidMaxMarket = errors.New("max markets must be a whole number, 0 for unlimited")
	ErrUnexpectedInput  = errors.New("use the buttons to confirm or restart")
)

// Step is one state of the onboarding wizard. Each state carries the
// answers collected so far.
type Step interface {
	// Prompt is the Markdown text asking for this step's input.
	Prompt() string
	// Next consumes a text reply and returns the following step.
	Next(input string) (Step, error)
}

// BetAmountStep asks for the minimum trade value in USD.
type BetAmountStep struct{}

// LiquidityStep asks for the minimum liquidity percent.
type LiquidityStep struct {
	Budget float64
}

// MarketActivityStep asks for the trader activity cap.
type MarketActivityStep struct {
	Budget    float64
	Liquidity float64
}

// ReviewStep shows the collected settings awaiting confirmation.
type ReviewStep struct {
	Settings registry.Settings
}

func (BetAmountStep) Prompt() string {
	return "💵 Send the minimum trade value in USD.\n_Example_: `5000`"
}

func (BetAmountStep) Next(input string) (Step, error) {
	v, err := parseAmount(input)
	if err != nil {
		return nil, err
	}
	return LiquidityStep{Budget: v}, nil
}

func (s LiquidityStep) Prompt() string {
	return fmt.Sprintf("✅ Trade threshold *%s*.\n\n💧 Send the minimum liquidity percent, or `skip` for the default of %s%%.",
		formatUSD(s.Budget), humanize.Ftoa(store.DefaultLiquidityThreshold))
}

func (s LiquidityStep) Next(input string) (Step, error) {
	if isSkip(input) {
		return MarketActivityStep{Budget: s.Budget, Liquidity: store.DefaultLiquidityThreshold}, nil
	}
	v, err := parsePercent(input)
	if err != nil {
		return nil, err
	}
	return MarketActivityStep{Budget: s.Budget, Liquidity: v}, nil
}

func (s MarketActivityStep) Prompt() string {
	return "🧭 Only alert on traders active in at most how many markets?\nSend a number, or `0` for no limit."
}

func (s MarketActivityStep) Next(input string) (Step, error) {
	if isSkip(input) {
		input = "0"
	}
	n, err := parseMaxMarkets(input)
	if err != nil {
		return nil, err
	}
	return ReviewStep{Settings: registry.Settings{
		BudgetThreshold:    s.Budget,
		LiquidityThreshold: s.Liquidity,
		MaxMarketsTraded:   n,
	}}, nil
}

func (s ReviewStep) Prompt() string {
	return "*Review your alert settings:*\n\n" + formatSettings(s.Settings)
}

func (ReviewStep) Next(string) (Step, error) {
	return nil, ErrUnexpectedInput
}

func isSkip(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "skip")
}

func parseAmount(input string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(strings.ReplaceAll(input, ",", "")), "$"), 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func parsePercent(input string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(input), "%"), 64)
	if err != nil || v < 0 || v > 100 {
		return 0, ErrInvalidPercent
	}
	return v, nil
}

func parseMaxMarkets(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 0 {
		return 0, ErrInvalidMaxMarket
	}
	return n, nil
}

func formatSettings(s registry.Settings) string {
	maxMarkets := "no limit"
	if s.MaxMarketsTraded > 0 {
		maxMarkets = strconv.Itoa(s.MaxMarketsTraded)
	}
	return fmt.Sprintf("• Min Bet Size: *%s*\n• Min Liquidity: *%s%%*\n• Max Markets Traded: *%s*",
		formatUSD(s.BudgetThreshold), humanize.Ftoa(s.LiquidityThreshold), maxMarkets)
}

// formatUSD renders a threshold with thousands separators. Unset budgets
// are stored as +Inf.
func formatUSD(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "not set"
	}
	return "$" + humanize.Commaf(v)
}

type session struct {
	step    Step
	touched time.Time
}

// Sessions holds in-progress wizards per chat. Entries idle longer than
// the TTL are forgotten.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[int64]session
	now   func() time.Time
}

// NewSessions creates an empty session store.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, items: make(map[int64]session), now: time.Now}
}

// Get returns the live step for chatID.
func (s *Sessions) Get(chatID int64) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[chatID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(it.touched) > s.ttl {
		delete(s.items, chatID)
		return nil, false
	}
	return it.step, true
}

// Put stores step for chatID and refreshes its TTL.
func (s *Sessions) Put(chatID int64, step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[chatID] = session{step: step, touched: s.now()}
}

// Delete ends the wizard for chatID.
func (s *Sessions) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, chatID)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for id, it := range s.items {
		if now.Sub(it.touched) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
