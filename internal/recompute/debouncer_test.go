package recompute

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// calcStub echoes the gross amount into the breakdown so tests can tell
// which input a result was computed from. An optional gate blocks Compute
// until released, simulating a slow computation.
type calcStub struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (c *calcStub) Compute(ctx context.Context, input billdomain.BillInput) billdomain.BillBreakdown {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.gate != nil {
		<-c.gate
	}
	b := billdomain.ZeroBreakdown()
	b.NetPayable = input.GrossAmount
	return b
}

func (c *calcStub) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordedResult struct {
	seq       uint64
	breakdown billdomain.BillBreakdown
}

func collector(results chan recordedResult) ResultFunc {
	return func(sessionID string, seq uint64, breakdown billdomain.BillBreakdown) {
		results <- recordedResult{seq: seq, breakdown: breakdown}
	}
}

func input(gross string) billdomain.BillInput {
	amount, err := decimal.NewFromString(gross)
	if err != nil {
		panic(err)
	}
	return billdomain.BillInput{GrossAmount: amount}
}

func TestDebounceCoalescesRapidEdits(t *testing.T) {
	calc := &calcStub{}
	d := New(calc, Config{SettleDelay: 40 * time.Millisecond}, zap.NewNop())

	results := make(chan recordedResult, 10)
	sessionID := d.Open("", collector(results))
	assert.NotEmpty(t, sessionID)

	for _, gross := range []string{"100", "200", "300", "400", "500"} {
		assert.NoError(t, d.Submit(sessionID, input(gross)))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-results:
		assert.Equal(t, uint64(5), got.seq)
		assert.True(t, decimal.NewFromInt(500).Equal(got.breakdown.NetPayable))
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	// only the last edit computed
	assert.Equal(t, 1, calc.Calls())

	select {
	case extra := <-results:
		t.Fatalf("unexpected extra result seq=%d", extra.seq)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLatestServesNewestAppliedResult(t *testing.T) {
	calc := &calcStub{}
	d := New(calc, Config{SettleDelay: 10 * time.Millisecond}, zap.NewNop())

	sessionID := d.Open("edit-1", nil)

	seq, breakdown, err := d.Latest(sessionID)
	assert.NoError(t, err)
	assert.Nil(t, breakdown)
	assert.Equal(t, uint64(0), seq)

	assert.NoError(t, d.Submit(sessionID, input("750")))

	assert.Eventually(t, func() bool {
		_, latest, err := d.Latest(sessionID)
		return err == nil && latest != nil
	}, time.Second, 5*time.Millisecond)

	seq, breakdown, err = d.Latest(sessionID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.True(t, decimal.NewFromInt(750).Equal(breakdown.NetPayable))
}

func TestSlowComputationSuperseded(t *testing.T) {
	calc := &calcStub{gate: make(chan struct{})}
	d := New(calc, Config{SettleDelay: 10 * time.Millisecond}, zap.NewNop())

	results := make(chan recordedResult, 10)
	sessionID := d.Open("", collector(results))

	assert.NoError(t, d.Submit(sessionID, input("100")))

	// let the first computation start and block inside Compute
	assert.Eventually(t, func() bool { return calc.Calls() == 1 }, time.Second, time.Millisecond)

	assert.NoError(t, d.Submit(sessionID, input("900")))

	// release the stale computation, then the fresh one
	calc.gate <- struct{}{}
	calc.gate <- struct{}{}

	select {
	case got := <-results:
		assert.Equal(t, uint64(2), got.seq)
		assert.True(t, decimal.NewFromInt(900).Equal(got.breakdown.NetPayable))
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	select {
	case extra := <-results:
		t.Fatalf("stale result applied seq=%d", extra.seq)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseDropsPendingEdit(t *testing.T) {
	calc := &calcStub{}
	d := New(calc, Config{SettleDelay: 30 * time.Millisecond}, zap.NewNop())

	results := make(chan recordedResult, 10)
	sessionID := d.Open("", collector(results))

	assert.NoError(t, d.Submit(sessionID, input("100")))
	d.Close(sessionID)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, calc.Calls())
	assert.Empty(t, results)
}

func TestSubmitUnknownSession(t *testing.T) {
	d := New(&calcStub{}, Config{}, zap.NewNop())

	err := d.Submit("missing", input("100"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = d.Latest("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitAfterClose(t *testing.T) {
	d := New(&calcStub{}, Config{SettleDelay: 10 * time.Millisecond}, zap.NewNop())

	sessionID := d.Open("", nil)
	d.Close(sessionID)

	err := d.Submit(sessionID, input("100"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
