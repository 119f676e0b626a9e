// Package ui holds the client-side interaction state shared by the CLI, the
// HTTP API and the WebSocket hub.
package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultToastTTL is how long a toast stays before it is removed.
const DefaultToastTTL = 5 * time.Second

// TradeMode selects the trade ticket variant.
type TradeMode string

const (
	ModeCommit TradeMode = "commit"
	ModeReveal TradeMode = "reveal"
)

// ToastType classifies a toast.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastInfo    ToastType = "info"
)

// Toast is a transient notification.
type Toast struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Type    ToastType `json:"type"`
}

// TradeContext is the open trade ticket.
type TradeContext struct {
	MarketID uint64    `json:"market_id"`
	Mode     TradeMode `json:"mode"`
}

// CreatorContext is the open creator panel.
type CreatorContext struct {
	MarketID uint64 `json:"market_id"`
}

// State is a copy of the store's contents.
type State struct {
	LoginOpen        bool            `json:"login_open"`
	CreateMarketOpen bool            `json:"create_market_open"`
	Trade            *TradeContext   `json:"trade,omitempty"`
	CreatorPanel     *CreatorContext `json:"creator_panel,omitempty"`
	Toasts           []Toast         `json:"toasts"`
	PendingTx        bool            `json:"pending_tx"`
}

func (s State) clone() State {
	out := s
	if s.Trade != nil {
		t := *s.Trade
		out.Trade = &t
	}
	if s.CreatorPanel != nil {
		c := *s.CreatorPanel
		out.CreatorPanel = &c
	}
	out.Toasts = append([]Toast{}, s.Toasts...)
	return out
}

// Option configures a Store.
type Option func(*Store)

// WithToastTTL overrides DefaultToastTTL.
func WithToastTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// Store is the UI state container. Every method is one atomic update;
// listeners run after the lock is released.
type Store struct {
	mu        sync.Mutex
	state     State
	ttl       time.Duration
	timers    map[string]*time.Timer
	listeners map[int]func(State)
	nextSub   int
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ttl:       DefaultToastTTL,
		timers:    make(map[string]*time.Timer),
		listeners: make(map[int]func(State)),
		state:     State{Toasts: []Toast{}},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive the state after every change. The
// returned func removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies listeners if it reports a
// change.
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state.clone()
	fns := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l)
	}
	s.mu.Unlock()

	for _, l := range fns {
		l(snap)
	}
}

func (s *Store) OpenLogin()  { s.update(func(st *State) bool { st.LoginOpen = true; return true }) }
func (s *Store) CloseLogin() { s.update(func(st *State) bool { st.LoginOpen = false; return true }) }

func (s *Store) OpenCreateMarket() {
	s.update(func(st *State) bool { st.CreateMarketOpen = true; return true })
}

func (s *Store) CloseCreateMarket() {
	s.update(func(st *State) bool { st.CreateMarketOpen = false; return true })
}

// OpenTrade opens the trade ticket for a market.
func (s *Store) OpenTrade(marketID uint64, mode TradeMode) {
	s.update(func(st *State) bool {
		st.Trade = &TradeContext{MarketID: marketID, Mode: mode}
		return true
	})
}

func (s *Store) CloseTrade() { s.update(func(st *State) bool { st.Trade = nil; return true }) }

// OpenCreatorPanel opens the creator panel for a market.
func (s *Store) OpenCreatorPanel(marketID uint64) {
	s.update(func(st *State) bool {
		st.CreatorPanel = &CreatorContext{MarketID: marketID}
		return true
	})
}

func (s *Store) CloseCreatorPanel() {
	s.update(func(st *State) bool { st.CreatorPanel = nil; return true })
}

// AddToast appends a toast with a fresh id and schedules its removal after
// the TTL. It returns the id.
func (s *Store) AddToast(message string, typ ToastType) string {
	id := uuid.NewString()
	s.update(func(st *State) bool {
		st.Toasts = append(st.Toasts, Toast{ID: id, Message: message, Type: typ})
		s.timers[id] = time.AfterFunc(s.ttl, func() { s.expire(id) })
		return true
	})
	return id
}

// expire removes a toast whose timer fired, unless it was already
// dismissed.
func (s *Store) expire(id string) {
	s.update(func(st *State) bool {
		if _, ok := s.timers[id]; !ok {
			return false
		}
		delete(s.timers, id)
		return removeToast(st, id)
	})
}

// RemoveToast dismisses a toast and cancels its pending removal. It reports
// whether the toast existed.
func (s *Store) RemoveToast(id string) bool {
	removed := false
	s.update(func(st *State) bool {
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
		removed = removeToast(st, id)
		return removed
	})
	return removed
}

func removeToast(st *State, id string) bool {
	for i, t := range st.Toasts {
		if t.ID == id {
			st.Toasts = append(st.Toasts[:i:i], st.Toasts[i+1:]...)
			return true
		}
	}
	return false
}

// SetPendingTx sets or clears the pending-transaction flag.
func (s *Store) SetPendingTx(pending bool) {
	s.update(func(st *State) bool {
		if st.PendingTx == pending {
			return false
		}
		st.PendingTx = pending
		return true
	})
}

// BeginTx sets the pending flag if it is clear and reports whether it did.
// A false result means another submission is in flight.
func (s *Store) BeginTx() bool {
	began := false
	s.update(func(st *State) bool {
		if st.PendingTx {
			return false
		}
		st.PendingTx = true
		began = true
		return true
	})
	return began
}

// Close stops every pending toast timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
