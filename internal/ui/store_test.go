package ui

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModalsAndContexts(t *testing.T) {
	s := NewStore()

	s.OpenLogin()
	s.OpenCreateMarket()
	s.OpenTrade(4, ModeReveal)
	s.OpenCreatorPanel(2)

	st := s.Snapshot()
	assert.True(t, st.LoginOpen)
	assert.True(t, st.CreateMarketOpen)
	require.NotNil(t, st.Trade)
	assert.Equal(t, TradeContext{MarketID: 4, Mode: ModeReveal}, *st.Trade)
	require.NotNil(t, st.CreatorPanel)
	assert.Equal(t, uint64(2), st.CreatorPanel.MarketID)

	// snapshots are copies
	st.Trade.MarketID = 99
	assert.Equal(t, uint64(4), s.Snapshot().Trade.MarketID)

	s.CloseLogin()
	s.CloseCreateMarket()
	s.CloseTrade()
	s.CloseCreatorPanel()
	st = s.Snapshot()
	assert.False(t, st.LoginOpen)
	assert.False(t, st.CreateMarketOpen)
	assert.Nil(t, st.Trade)
	assert.Nil(t, st.CreatorPanel)
}

func TestToastExpires(t *testing.T) {
	s := NewStore(WithToastTTL(20 * time.Millisecond))
	defer s.Close()

	id := s.AddToast("Market created successfully!", ToastSuccess)
	st := s.Snapshot()
	require.Len(t, st.Toasts, 1)
	assert.Equal(t, id, st.Toasts[0].ID)
	assert.Equal(t, ToastSuccess, st.Toasts[0].Type)

	require.Eventually(t, func() bool { return len(s.Snapshot().Toasts) == 0 }, time.Second, 5*time.Millisecond)
}

func TestToastDismissCancelsTimer(t *testing.T) {
	s := NewStore(WithToastTTL(30 * time.Millisecond))
	defer s.Close()

	var changes atomic.Int32
	unsubscribe := s.Subscribe(func(State) { changes.Add(1) })
	defer unsubscribe()

	a := s.AddToast("a", ToastInfo)
	b := s.AddToast("b", ToastError)
	assert.True(t, s.RemoveToast(a))
	assert.False(t, s.RemoveToast(a))

	st := s.Snapshot()
	require.Len(t, st.Toasts, 1)
	assert.Equal(t, b, st.Toasts[0].ID)

	require.Eventually(t, func() bool { return len(s.Snapshot().Toasts) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	// add a, add b, remove a, expire b; the cancelled timer never fires
	assert.Equal(t, int32(4), changes.Load())
}

func TestToastIDsUnique(t *testing.T) {
	s := NewStore(WithToastTTL(time.Hour))
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddToast("x", ToastInfo)
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, toast := range s.Snapshot().Toasts {
		assert.False(t, seen[toast.ID])
		seen[toast.ID] = true
	}
	assert.Len(t, seen, 50)
}

func TestBeginTx(t *testing.T) {
	s := NewStore()
	assert.True(t, s.BeginTx())
	assert.False(t, s.BeginTx())
	assert.True(t, s.Snapshot().PendingTx)
	s.SetPendingTx(false)
	assert.False(t, s.Snapshot().PendingTx)
	assert.True(t, s.BeginTx())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := NewStore()
	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	s.OpenTrade(1, ModeCommit)
	s.SetPendingTx(false) // no change, no notification
	unsubscribe()
	s.CloseTrade()

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Trade)
	assert.Equal(t, ModeCommit, got[0].Trade.Mode)
}
