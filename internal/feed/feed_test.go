package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/unit-inventory/internal/model"
)

func testClient(t *testing.T, url string) *Client {
	return NewClient(Options{
		URL:          url,
		Timeout:      2 * time.Second,
		Attempts:     3,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSoldUnits_Shapes(t *testing.T) {
	bodies := map[string]string{
		"array": `[{"unitNumber":"7","buyerName":"Sara"}]`,
		"rows":  `{"rows":[{"unit_number":7,"buyer_name":"Sara"}]}`,
		"data":  `{"data":[{"Unit Number":"007","Buyer":"Sara"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			sold, err := testClient(t, srv.URL).FetchSoldUnits(context.Background())
			require.NoError(t, err)
			require.Contains(t, sold, "7")
			assert.Equal(t, "Sara", sold["7"].BuyerName)
		})
	}
}

func TestFetchSoldUnits_ArabicHeaders(t *testing.T) {
	body := `[{"رقم الوحدة":"١٢","اسم العميل":"سارة","المحاسب":"هادي","السعر":"١٬٢٥٠٬٠٠٠ ر.س","المساحة":"١٢٥٫٥","التصنيف":"سكني"}]`
	srv := serve(t, http.StatusOK, body)
	sold, err := testClient(t, srv.URL).FetchSoldUnits(context.Background())
	require.NoError(t, err)

	info, ok := sold["12"]
	require.True(t, ok)
	assert.Equal(t, "سارة", info.BuyerName)
	assert.Equal(t, "هادي", info.AccountantName)
	assert.Equal(t, "سكني", info.Category)
	assert.True(t, info.SalePrice.Equal(decimal.NewFromInt(1250000)), info.SalePrice.String())
	assert.True(t, info.Area.Equal(decimal.RequireFromString("125.5")), info.Area.String())
}

func TestParseRows_FirstCandidateWins(t *testing.T) {
	rows := []map[string]any{
		{"unitNumber": "3", "buyerName": "", "customer": "Fallback", "Buyer": "Preferred"},
		{"unitNumber": "", "buyerName": "NoUnit"},
	}
	sold := ParseRows(rows)
	require.Len(t, sold, 1)
	assert.Equal(t, "Preferred", sold["3"].BuyerName, "empty values fall through to the next candidate")
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1,250,000":      "1250000",
		"SAR 950,000.50": "950000.5",
		"﷼ 750٬000":      "750000",
		"1000 ر.س":       "1000",
		"":               "0",
		"n/a":            "0",
		"1.2.3":          "0",
	}
	for in, want := range cases {
		assert.True(t, ParseAmount(in).Equal(decimal.RequireFromString(want)), "%q -> %s", in, ParseAmount(in))
	}
}

func TestUnitKey(t *testing.T) {
	assert.Equal(t, "12", UnitKey(" 012 "))
	assert.Equal(t, "12", UnitKey("١٢"))
	assert.Equal(t, "12", UnitKey("12.0"))
	assert.Equal(t, "A-12", UnitKey("A-12"))
	assert.Equal(t, "", UnitKey("  "))
}

func TestFetchSoldUnits_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"unitNumber":"1"}]`))
	}))
	defer srv.Close()

	sold, err := testClient(t, srv.URL).FetchSoldUnits(context.Background())
	require.NoError(t, err)
	assert.Len(t, sold, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchSoldUnits_FailureIsUnavailable(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, `oops`)
	sold, err := testClient(t, srv.URL).FetchSoldUnits(context.Background())
	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusServiceUnavailable, ue.StatusCode)
	assert.NotNil(t, sold)
	assert.Empty(t, sold)

	_, err = testClient(t, "").FetchSoldUnits(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	bad := serve(t, http.StatusOK, `{"items":[]}`)
	_, err = testClient(t, bad.URL).FetchSoldUnits(context.Background())
	require.True(t, errors.As(err, &ue))
}

type scriptedFetcher struct {
	calls int32
	next  func() (map[string]model.SoldUnitInfo, error)
}

func (f *scriptedFetcher) FetchSoldUnits(ctx context.Context) (map[string]model.SoldUnitInfo, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.next()
}

type countingObserver struct {
	ok, failed int
	sold       int
}

func (o *countingObserver) FeedFetched(ok bool, _ time.Duration) {
	if ok {
		o.ok++
	} else {
		o.failed++
	}
}
func (o *countingObserver) FeedSoldUnits(n int) { o.sold = n }

func TestCache_KeepsLastGoodSnapshot(t *testing.T) {
	f := &scriptedFetcher{next: func() (map[string]model.SoldUnitInfo, error) {
		return map[string]model.SoldUnitInfo{"7": {UnitNumber: "7", BuyerName: "Sara"}}, nil
	}}
	obs := &countingObserver{}
	c := NewCache(f, 0, zaptest.NewLogger(t), obs)

	snap, changed, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, snap.Stale)
	assert.Contains(t, snap.Units, "7")

	_, changed, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "identical feed is not a change")

	f.next = func() (map[string]model.SoldUnitInfo, error) {
		return map[string]model.SoldUnitInfo{}, &UnavailableError{StatusCode: 500}
	}
	snap, err = c.SoldUnits(context.Background())
	require.Error(t, err)
	assert.True(t, snap.Stale)
	assert.Contains(t, snap.Units, "7", "outage keeps previously known sold units")

	last, lastErr := c.Last()
	assert.True(t, last.Stale)
	assert.Error(t, lastErr)

	assert.Equal(t, 2, obs.ok)
	assert.Equal(t, 1, obs.failed)
	assert.Equal(t, 1, obs.sold)
}

func TestCache_NoSnapshotYet(t *testing.T) {
	f := &scriptedFetcher{next: func() (map[string]model.SoldUnitInfo, error) {
		return map[string]model.SoldUnitInfo{}, &UnavailableError{Err: ErrNotConfigured}
	}}
	c := NewCache(f, time.Minute, nil, nil)
	snap, err := c.SoldUnits(context.Background())
	require.Error(t, err)
	assert.False(t, snap.Stale)
	assert.NotNil(t, snap.Units)
	assert.Empty(t, snap.Units)
}

func TestCache_ServesFreshFromMemory(t *testing.T) {
	f := &scriptedFetcher{next: func() (map[string]model.SoldUnitInfo, error) {
		return map[string]model.SoldUnitInfo{"1": {UnitNumber: "1"}}, nil
	}}
	c := NewCache(f, time.Hour, nil, nil)
	for i := 0; i < 5; i++ {
		_, err := c.SoldUnits(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

// blockingFetcher hangs until release is closed, then fails.
type blockingFetcher struct {
	calls   int32
	release chan struct{}
}

func (f *blockingFetcher) FetchSoldUnits(context.Context) (map[string]model.SoldUnitInfo, error) {
	atomic.AddInt32(&f.calls, 1)
	<-f.release
	return map[string]model.SoldUnitInfo{}, &UnavailableError{StatusCode: http.StatusBadGateway}
}

func TestCache_CooldownAfterFailure(t *testing.T) {
	f := &scriptedFetcher{next: func() (map[string]model.SoldUnitInfo, error) {
		return map[string]model.SoldUnitInfo{}, &UnavailableError{StatusCode: http.StatusServiceUnavailable}
	}}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewCache(f, time.Minute, nil, nil, WithFailureCooldown(time.Minute))
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		snap, err := c.SoldUnits(context.Background())
		require.Error(t, err)
		assert.NotNil(t, snap.Units)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls), "reads inside the cooldown reuse the failure")

	_, _, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls), "explicit refresh ignores the cooldown")

	now = now.Add(2 * time.Minute)
	_, err = c.SoldUnits(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls))
}

func TestCache_CallerStopsWaitingOnDeadline(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{})}
	c := NewCache(f, time.Minute, nil, nil, WithFailureCooldown(time.Minute))

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		start := time.Now()
		snap, err := c.SoldUnits(ctx)
		cancel()
		assert.Less(t, time.Since(start), time.Second)
		var ue *UnavailableError
		require.ErrorAs(t, err, &ue)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotNil(t, snap.Units)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls), "waiting callers share the in-flight fetch")

	close(f.release)
	require.Eventually(t, func() bool {
		_, err := c.Last()
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	_, err := c.SoldUnits(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}
