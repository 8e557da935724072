// Package risk implements the pre-trade safety-check actor: a single
// goroutine owns all per-user risk state and is reached only through a
// command channel, giving lock-free, serialized access to a map that
// would otherwise need a mutex on every check.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Config tunes the trading limits the actor enforces.
type Config struct {
	MaxSingleTradeUSD  float64
	MaxDailyVolumeUSD  float64
	MaxSlippagePercent float64
	MinLiquidityUSD    float64
	EnableRugDetection bool
	TradeCooldown      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSingleTradeUSD:  10000.0,
		MaxDailyVolumeUSD:  50000.0,
		MaxSlippagePercent: 5.0,
		MinLiquidityUSD:    100000.0,
		EnableRugDetection: true,
		TradeCooldown:      5 * time.Second,
	}
}

// TradeContext describes one trade awaiting a risk decision.
type TradeContext struct {
	UserID           string
	FromToken        string
	ToToken          string
	AmountUSD        float64
	ExpectedSlippage float64
	LiquidityUSD     *float64
	IsFlagged        bool
}

// UserState tracks one user's rolling trade volume.
type UserState struct {
	DailyVolumeUSD   float64   `json:"daily_volume_usd"`
	PendingVolumeUSD float64   `json:"pending_volume_usd"`
	LastTrade        time.Time `json:"last_trade"`
	VolumeReset      time.Time `json:"volume_reset"`
}

// Check is a pluggable risk rule evaluated after the built-in checks.
type Check interface {
	Name() string
	Check(ctx *TradeContext) error
}

// Store persists risk state across restarts.
type Store interface {
	Load(ctx context.Context) (map[string]*UserState, error)
	Save(ctx context.Context, states map[string]*UserState) error
}

// command is the actor's internal message type, carried over the
// buffered channel the Manager exposes its methods through.
type command interface{ isCommand() }

type cmdCheckAndReserve struct {
	ctx    *TradeContext
	checks []Check
	reply  chan error
}

type cmdCommit struct {
	userID string
	amount float64
	reply  chan error
}

type cmdRollback struct {
	userID string
	amount float64
}

type cmdGetRemaining struct {
	userID string
	reply  chan float64
}

type cmdLoadState struct {
	reply chan error
}

func (cmdCheckAndReserve) isCommand() {}
func (cmdCommit) isCommand()          {}
func (cmdRollback) isCommand()        {}
func (cmdGetRemaining) isCommand()    {}
func (cmdLoadState) isCommand()       {}

// Manager is the public risk-control handle. All methods are safe to
// call from any goroutine; the actual state mutation happens on a
// single owning goroutine reached via the command channel.
type Manager struct {
	cfg    Config
	store  Store
	cmds   chan command
	logger *slog.Logger

	checksMu sync.RWMutex
	checks   []Check
}

// New starts a risk manager with an in-memory-only store (no
// persistence across restarts).
func New(cfg Config) *Manager {
	return NewWithStore(cfg, noopStore{})
}

// NewWithStore starts a risk manager backed by store, loading any
// previously persisted state before returning.
func NewWithStore(cfg Config, store Store) *Manager {
	if cfg.TradeCooldown <= 0 {
		cfg.TradeCooldown = 5 * time.Second
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		cmds:   make(chan command, 100),
		logger: slog.Default(),
	}
	actor := &riskActor{cfg: cfg, store: store, state: make(map[string]*UserState), logger: m.logger}
	go runActor(actor, m.cmds)

	if err := m.LoadState(context.Background()); err != nil {
		m.logger.Error("risk: initial state load failed", "error", err)
	}
	return m
}

// AddCheck registers a custom risk check evaluated on every reservation.
func (m *Manager) AddCheck(c Check) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks = append(m.checks, c)
}

// CheckAndReserve validates a trade and, if accepted, reserves its
// amount against the user's daily volume atomically.
func (m *Manager) CheckAndReserve(ctx context.Context, tc *TradeContext) error {
	m.checksMu.RLock()
	checks := append([]Check(nil), m.checks...)
	m.checksMu.RUnlock()

	reply := make(chan error, 1)
	select {
	case m.cmds <- cmdCheckAndReserve{ctx: tc, checks: checks, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckTrade is a deprecated compatibility shim: it reserves then
// immediately rolls back, exercising the same validation path as
// CheckAndReserve without holding a reservation open.
//
// Deprecated: use CheckAndReserve, which avoids the race window between
// check and commit.
func (m *Manager) CheckTrade(ctx context.Context, tc *TradeContext) error {
	if err := m.CheckAndReserve(ctx, tc); err != nil {
		return err
	}
	m.RollbackTrade(ctx, tc.UserID, tc.AmountUSD)
	return nil
}

// CommitTrade converts a previous reservation into committed daily
// volume.
func (m *Manager) CommitTrade(ctx context.Context, userID string, amountUSD float64) error {
	reply := make(chan error, 1)
	select {
	case m.cmds <- cmdCommit{userID: userID, amount: amountUSD, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordTrade is an alias for CommitTrade, matching callers that record
// a trade that executed outside the reserve/commit flow.
func (m *Manager) RecordTrade(ctx context.Context, userID string, amountUSD float64) error {
	return m.CommitTrade(ctx, userID, amountUSD)
}

// RollbackTrade releases a reservation without committing it.
func (m *Manager) RollbackTrade(ctx context.Context, userID string, amountUSD float64) {
	select {
	case m.cmds <- cmdRollback{userID: userID, amount: amountUSD}:
	case <-ctx.Done():
	}
}

// RemainingDailyLimit returns how much volume a user has left today.
func (m *Manager) RemainingDailyLimit(ctx context.Context, userID string) float64 {
	reply := make(chan float64, 1)
	select {
	case m.cmds <- cmdGetRemaining{userID: userID, reply: reply}:
	case <-ctx.Done():
		return 0
	}
	select {
	case v := <-reply:
		return v
	case <-ctx.Done():
		return 0
	}
}

// LoadState reloads risk state from the store, discarding any pending
// (unreserved) volume as a startup safety measure.
func (m *Manager) LoadState(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case m.cmds <- cmdLoadState{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// riskActor owns all mutable risk state; every field below is touched
// only from the single goroutine runActor drives.
type riskActor struct {
	cfg    Config
	state  map[string]*UserState
	store  Store
	logger *slog.Logger
}

// runActor drives the actor's command loop, restarting it with a short
// backoff if a single command's handling panics. A panic during
// handling does not lose already-committed state; only the in-flight
// command's reply is abandoned.
func runActor(actor *riskActor, cmds chan command) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	dirty := false

	for {
		if processOneBatch(actor, cmds, ticker, &dirty) {
			return
		}
	}
}

// processOneBatch runs the actor's select loop inside a recover guard,
// returning true once the command channel is closed (normal shutdown).
// A panic is treated as a crash-restart: per spec.md §4.10/§8 property 5,
// state is reloaded from disk on restart and any nonzero reserved/pending
// volume left over from before the crash is orphaned and reset to zero,
// so the in-memory state is never resumed as-is.
func processOneBatch(actor *riskActor, cmds chan command, ticker *time.Ticker, dirty *bool) (closed bool) {
	defer func() {
		if r := recover(); r != nil {
			actor.logger.Error("risk: actor panicked, restarting", "panic", r, "stack", string(debug.Stack()))
			time.Sleep(time.Second)
			if err := actor.handleLoad(context.Background()); err != nil {
				actor.logger.Error("risk: restart reload failed, resuming with prior in-memory state", "error", err)
				return
			}
			*dirty = false
		}
	}()

	for {
		select {
		case msg, ok := <-cmds:
			if !ok {
				return true
			}
			switch c := msg.(type) {
			case cmdCheckAndReserve:
				err := actor.handleCheckAndReserve(context.Background(), c.ctx, c.checks)
				*dirty = err == nil
				c.reply <- err
			case cmdCommit:
				c.reply <- actor.handleCommit(context.Background(), c.userID, c.amount)
			case cmdRollback:
				actor.handleRollback(c.userID, c.amount)
				*dirty = true
			case cmdGetRemaining:
				c.reply <- actor.handleGetRemaining(c.userID)
			case cmdLoadState:
				c.reply <- actor.handleLoad(context.Background())
			}
		case <-ticker.C:
			if *dirty {
				if err := actor.store.Save(context.Background(), actor.state); err != nil {
					actor.logger.Error("risk: periodic state flush failed", "error", err)
				} else {
					*dirty = false
				}
			}
		}
	}
}

func (a *riskActor) handleLoad(ctx context.Context) error {
	loaded, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	for userID, state := range loaded {
		if state.PendingVolumeUSD != 0 {
			a.logger.Warn("risk: resetting zombie pending volume on load", "user_id", userID, "amount", state.PendingVolumeUSD)
			state.PendingVolumeUSD = 0
		}
	}
	a.state = loaded
	return nil
}

func (a *riskActor) handleCheckAndReserve(ctx context.Context, tc *TradeContext, checks []Check) error {
	if err := validateStateless(a.cfg, tc, checks); err != nil {
		return err
	}

	state := a.userState(tc.UserID)

	now := time.Now().UTC()
	if now.Truncate(24 * time.Hour).After(state.VolumeReset.Truncate(24 * time.Hour)) {
		state.DailyVolumeUSD = 0
		state.VolumeReset = now
	}

	projected := state.DailyVolumeUSD + state.PendingVolumeUSD + tc.AmountUSD
	if projected > a.cfg.MaxDailyVolumeUSD {
		return &LimitExceededError{LimitType: "daily_volume", Current: projected, Max: a.cfg.MaxDailyVolumeUSD}
	}

	if !state.LastTrade.IsZero() {
		if now.Sub(state.LastTrade) < a.cfg.TradeCooldown {
			return &CheckFailedError{CheckName: "cooldown", Reason: "trading too fast"}
		}
	}

	state.PendingVolumeUSD += tc.AmountUSD
	return a.store.Save(ctx, a.state)
}

// validateStateless runs the checks that don't need a user's running
// volume, so they can be evaluated before the actor touches shared
// state.
func validateStateless(cfg Config, tc *TradeContext, checks []Check) error {
	if tc.AmountUSD <= 0 {
		return &CheckFailedError{CheckName: "amount_validation", Reason: fmt.Sprintf("amount must be positive, got $%.2f", tc.AmountUSD)}
	}
	if tc.AmountUSD > cfg.MaxSingleTradeUSD {
		return &LimitExceededError{LimitType: "single_trade", Current: tc.AmountUSD, Max: cfg.MaxSingleTradeUSD}
	}
	if tc.ExpectedSlippage > cfg.MaxSlippagePercent {
		return &CheckFailedError{CheckName: "slippage", Reason: fmt.Sprintf("slippage %.2f > %.2f", tc.ExpectedSlippage, cfg.MaxSlippagePercent)}
	}
	if tc.LiquidityUSD != nil && *tc.LiquidityUSD < cfg.MinLiquidityUSD {
		return &CheckFailedError{CheckName: "liquidity", Reason: "insufficient liquidity"}
	}
	if cfg.EnableRugDetection && tc.IsFlagged {
		return &CheckFailedError{CheckName: "rug_detection", Reason: "token flagged as risky"}
	}
	for _, c := range checks {
		if err := c.Check(tc); err != nil {
			return &CheckFailedError{CheckName: c.Name(), Reason: err.Error()}
		}
	}
	return nil
}

func (a *riskActor) handleCommit(ctx context.Context, userID string, amount float64) error {
	state := a.userState(userID)
	oldPending, oldDaily, oldLast := state.PendingVolumeUSD, state.DailyVolumeUSD, state.LastTrade

	state.PendingVolumeUSD = maxFloat(state.PendingVolumeUSD-amount, 0)
	state.DailyVolumeUSD += amount
	state.LastTrade = time.Now().UTC()

	if err := a.store.Save(ctx, a.state); err != nil {
		state.PendingVolumeUSD, state.DailyVolumeUSD, state.LastTrade = oldPending, oldDaily, oldLast
		return err
	}
	return nil
}

func (a *riskActor) handleRollback(userID string, amount float64) {
	state, ok := a.state[userID]
	if !ok {
		return
	}
	state.PendingVolumeUSD = maxFloat(state.PendingVolumeUSD-amount, 0)
}

func (a *riskActor) handleGetRemaining(userID string) float64 {
	state, ok := a.state[userID]
	if !ok {
		return a.cfg.MaxDailyVolumeUSD
	}
	return maxFloat(a.cfg.MaxDailyVolumeUSD-(state.DailyVolumeUSD+state.PendingVolumeUSD), 0)
}

func (a *riskActor) userState(userID string) *UserState {
	state, ok := a.state[userID]
	if !ok {
		state = &UserState{VolumeReset: time.Now().UTC()}
		a.state[userID] = state
	}
	return state
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// noopStore discards state; used when a caller wants in-process-only
// risk tracking with no durability.
type noopStore struct{}

func (noopStore) Load(context.Context) (map[string]*UserState, error) { return map[string]*UserState{}, nil }
func (noopStore) Save(context.Context, map[string]*UserState) error   { return nil }
