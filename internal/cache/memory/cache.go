// Package memory implements the cache and bus interfaces in-process, for
// single-instance deployments without Redis.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
)

// MarketCache is an in-process domain.MarketCache.
type MarketCache struct {
	mu      sync.RWMutex
	markets map[uint64]domain.Market
}

// NewMarketCache returns an empty cache.
func NewMarketCache() *MarketCache {
	return &MarketCache{markets: make(map[uint64]domain.Market)}
}

func (c *MarketCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	c.markets[m.ID] = m
	c.mu.Unlock()
	return nil
}

func (c *MarketCache) Get(_ context.Context, id uint64) (domain.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *MarketCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	delete(c.markets, id)
	c.mu.Unlock()
	return nil
}

// SignalBus is an in-process domain.SignalBus. Slow subscribers drop
// messages instead of blocking publishers.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	seq     uint64
	maxLen  int
}

// NewSignalBus returns a bus whose streams keep at most maxLen entries.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- append([]byte(nil), payload...):
		default:
		}
	}
	return nil
}

func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	msgs := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(b.seq, 10),
		Payload: append([]byte(nil), payload...),
	})
	if len(msgs) > b.maxLen {
		msgs = msgs[len(msgs)-b.maxLen:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count entries after lastID. "0" and "" read from
// the start.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.streams[stream]
	start := 0
	if lastID != "" && lastID != "0" && lastID != "0-0" {
		start = len(msgs)
		for i, m := range msgs {
			if streamAfter(m.ID, lastID) {
				start = i
				break
			}
		}
	}
	end := len(msgs)
	if count > 0 && start+count < end {
		end = start + count
	}
	return append([]domain.StreamMessage(nil), msgs[start:end]...), nil
}

// streamAfter compares "<ms>-<seq>" ids.
func streamAfter(id, last string) bool {
	ims, iseq := splitID(id)
	lms, lseq := splitID(last)
	if ims != lms {
		return ims > lms
	}
	return iseq > lseq
}

func splitID(id string) (uint64, uint64) {
	ms, seq, _ := strings.Cut(id, "-")
	a, _ := strconv.ParseUint(ms, 10, 64)
	b, _ := strconv.ParseUint(seq, 10, 64)
	return a, b
}

// LockManager is an in-process domain.LockManager.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time), now: time.Now}
}

func (l *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, domain.ErrLockHeld
	}
	until := now.Add(ttl)
	l.held[key] = until
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.held[key].Equal(until) {
				delete(l.held, key)
			}
			l.mu.Unlock()
		})
	}, nil
}

var (
	_ domain.MarketCache = (*MarketCache)(nil)
	_ domain.SignalBus   = (*SignalBus)(nil)
	_ domain.LockManager = (*LockManager)(nil)
)
