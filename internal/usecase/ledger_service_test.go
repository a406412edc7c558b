package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperledger/internal/domain"
	"paperledger/internal/repository"
	"paperledger/internal/service"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fixture struct {
	ledger *LedgerService
	quotes *service.StaticQuoteSource
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	quotes := service.NewStaticQuoteSource(nil)
	batcher := service.NewQuoteBatcher(quotes, 4, time.Second, zap.NewNop())
	ledger := NewLedgerService(repository.NewMemoryPositionRepository(), batcher, zap.NewNop())
	ledger.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return fixture{ledger: ledger, quotes: quotes}
}

func (f fixture) open(t *testing.T, symbol, side, entry, qty, lev string) *domain.Position {
	t.Helper()
	p, err := f.ledger.OpenPosition(context.Background(), domain.OpenPositionInput{
		AssetClass:   "crypto",
		AssetSymbol:  symbol,
		PositionType: side,
		EntryPrice:   dec(entry),
		Quantity:     dec(qty),
		Leverage:     decPtr(lev),
	})
	require.NoError(t, err)
	return p
}

func TestOpenPosition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.ledger.OpenPosition(ctx, domain.OpenPositionInput{
		AssetClass:   " Crypto ",
		AssetSymbol:  "btc_usd",
		PositionType: "long",
		EntryPrice:   dec("100"),
		Quantity:     dec("2"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, p.Status)
	assert.Equal(t, domain.AssetClassCrypto, p.AssetClass)
	assert.Equal(t, "BTC_USD", p.AssetSymbol)
	assert.Equal(t, domain.SideLong, p.PositionType)
	assert.True(t, dec("1").Equal(p.Leverage), "leverage defaults to 1")

	got, err := f.ledger.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.True(t, p.EntryPrice.Equal(got.EntryPrice))
	assert.True(t, p.Quantity.Equal(got.Quantity))
	assert.Nil(t, got.ExitPrice)
	assert.Nil(t, got.ExitTime)
}

func TestOpenPosition_Validation(t *testing.T) {
	t.Parallel()

	base := domain.OpenPositionInput{
		AssetClass:   "CRYPTO",
		AssetSymbol:  "BTC_USD",
		PositionType: "LONG",
		EntryPrice:   dec("100"),
		Quantity:     dec("1"),
	}

	tests := []struct {
		name  string
		mut   func(in *domain.OpenPositionInput)
		field string
	}{
		{"unknown asset class", func(in *domain.OpenPositionInput) { in.AssetClass = "BONDS" }, "asset_class"},
		{"empty symbol", func(in *domain.OpenPositionInput) { in.AssetSymbol = "  " }, "asset_symbol"},
		{"unknown side", func(in *domain.OpenPositionInput) { in.PositionType = "SIDEWAYS" }, "position_type"},
		{"zero entry", func(in *domain.OpenPositionInput) { in.EntryPrice = decimal.Zero }, "entry_price"},
		{"negative quantity", func(in *domain.OpenPositionInput) { in.Quantity = dec("-1") }, "quantity"},
		{"leverage below 1", func(in *domain.OpenPositionInput) { in.Leverage = decPtr("0.5") }, "leverage"},
		{"leverage above cap", func(in *domain.OpenPositionInput) { in.Leverage = decPtr("101") }, "leverage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			in := base
			tt.mut(&in)

			_, err := f.ledger.OpenPosition(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			all, err := f.ledger.ListPositions(context.Background(), domain.PositionFilter{})
			require.NoError(t, err)
			assert.Empty(t, all, "rejected input must not persist anything")
		})
	}
}

func TestClosePosition_LongScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p := f.open(t, "BTC_USD", "LONG", "100", "2", "3")
	closed, err := f.ledger.ClosePosition(ctx, p.ID, dec("110"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.ExitTime)
	assert.True(t, f.ledger.now().Equal(*closed.ExitTime))

	pnl, err := closed.RealizedPnL()
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(pnl.PnL))
	assert.True(t, dec("10").Equal(pnl.PnLPercent))
	assert.True(t, dec("60").Equal(pnl.PnLWithLeverage))
	assert.True(t, dec("30").Equal(pnl.PnLWithLeveragePercent))
}

func TestClosePosition_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p := f.open(t, "BTC_USD", "LONG", "100", "1", "1")

	_, err := f.ledger.ClosePosition(ctx, p.ID, decimal.Zero, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.ledger.ClosePosition(ctx, uuid.New(), dec("1"), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := f.ledger.ClosePosition(ctx, p.ID, dec("105"), nil)
	require.NoError(t, err)

	f.ledger.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	_, err = f.ledger.ClosePosition(ctx, p.ID, dec("999"), nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)

	got, err := f.ledger.GetPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, first.ExitPrice.Equal(*got.ExitPrice))
	assert.True(t, first.ExitTime.Equal(*got.ExitTime))

	_, err = f.ledger.UpdateNotes(ctx, p.ID, "too late")
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
}

func TestClosePosition_Concurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.open(t, "BTC_USD", "LONG", "100", "1", "1")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ClosePosition(context.Background(), p.ID, dec("110"), nil)
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, domain.ErrAlreadyClosed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 1, conflicts.Load())
}

func TestListOpenPositionsWithPnL_ShortScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	short := f.open(t, "ETH_USD", "SHORT", "50", "10", "2")
	missing := f.open(t, "SOL_USD", "LONG", "20", "1", "1")
	closed := f.open(t, "ETH_USD", "LONG", "10", "1", "1")
	_, err := f.ledger.ClosePosition(ctx, closed.ID, dec("11"), nil)
	require.NoError(t, err)

	f.quotes.SetPrice("ETH_USD", dec("45"))

	got, err := f.ledger.ListOpenPositionsWithPnL(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, short.ID, got[0].ID)
	require.NotNil(t, got[0].Figures)
	assert.True(t, dec("50").Equal(got[0].Figures.PnL))
	assert.True(t, dec("10").Equal(got[0].Figures.PnLPercent))
	assert.True(t, dec("100").Equal(got[0].Figures.PnLWithLeverage))
	assert.True(t, dec("20").Equal(got[0].Figures.PnLWithLeveragePercent))

	assert.Equal(t, missing.ID, got[1].ID)
	assert.True(t, got[1].QuoteUnavailable)
	assert.Nil(t, got[1].Figures)
}

func TestGetPortfolioStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.ledger.GetPortfolioStats(ctx)
	require.NoError(t, err)
	assert.True(t, empty.WinRate.IsZero())
	assert.True(t, empty.TotalPnL.IsZero())
	assert.True(t, empty.TotalPnLPercent.IsZero())
	assert.True(t, empty.LargestWin.IsZero())
	assert.True(t, empty.LargestLoss.IsZero())

	win := f.open(t, "BTC_USD", "LONG", "100", "2", "3")
	_, err = f.ledger.ClosePosition(ctx, win.ID, dec("110"), nil)
	require.NoError(t, err)

	loss := f.open(t, "ETH_USD", "SHORT", "50", "1", "2")
	_, err = f.ledger.ClosePosition(ctx, loss.ID, dec("60"), nil)
	require.NoError(t, err)

	stats, err := f.ledger.GetPortfolioStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ClosedPositions)
	assert.True(t, dec("50").Equal(stats.WinRate))
	assert.True(t, dec("60").Equal(stats.LargestWin))
	assert.True(t, dec("-20").Equal(stats.LargestLoss))
	assert.True(t, dec("60").Equal(stats.AvgWin))
	assert.True(t, dec("-20").Equal(stats.AvgLoss))

	// deleting removes the position from list and stats
	require.NoError(t, f.ledger.DeletePosition(ctx, loss.ID))
	stats, err = f.ledger.GetPortfolioStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ClosedPositions)
	assert.True(t, dec("100").Equal(stats.WinRate))
	assert.True(t, stats.LargestLoss.IsZero())

	all, err := f.ledger.ListPositions(ctx, domain.PositionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, win.ID, all[0].ID)

	assert.ErrorIs(t, f.ledger.DeletePosition(ctx, loss.ID), domain.ErrNotFound)
}

func TestGetPortfolioStats_QuoteUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.open(t, "XAU", "LONG", "2000", "1", "1")
	f.open(t, "BTC_USD", "LONG", "100", "1", "2")
	f.quotes.SetPrice("BTC_USD", dec("110"))

	stats, err := f.ledger.GetPortfolioStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OpenPositions)
	assert.Equal(t, []string{"XAU"}, stats.UnavailableSymbols)
	assert.True(t, dec("20").Equal(stats.TotalPnL))
	assert.True(t, dec("20").Equal(stats.TotalPnLPercent))
}

func TestListPositions_Filters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t, "BTC_USD", "LONG", "1", "1", "1")
	b := f.open(t, "ETH_USD", "LONG", "1", "1", "1")
	c := f.open(t, "BTC_USD", "SHORT", "1", "1", "1")
	_, err := f.ledger.ClosePosition(ctx, c.ID, dec("2"), nil)
	require.NoError(t, err)

	btc, err := f.ledger.ListPositions(ctx, domain.PositionFilter{AssetSymbol: "btc_usd"})
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, a.ID, btc[0].ID)
	assert.Equal(t, c.ID, btc[1].ID)

	open, err := f.ledger.ListPositions(ctx, domain.PositionFilter{Status: domain.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, a.ID, open[0].ID)
	assert.Equal(t, b.ID, open[1].ID)
}

func TestUpdateNotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p := f.open(t, "BTC_USD", "LONG", "1", "1", "1")
	updated, err := f.ledger.UpdateNotes(ctx, p.ID, "breakout retest")
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "breakout retest", *updated.Notes)

	_, err = f.ledger.UpdateNotes(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOpenPositionsWithPnL_LowercaseStaticQuotes(t *testing.T) {
	t.Parallel()

	prices, err := service.ParseStaticQuotes("xau=2300")
	require.NoError(t, err)
	batcher := service.NewQuoteBatcher(service.NewStaticQuoteSource(prices), 2, time.Second, zap.NewNop())
	ledger := NewLedgerService(repository.NewMemoryPositionRepository(), batcher, zap.NewNop())
	f := fixture{ledger: ledger}

	f.open(t, "xau", "LONG", "2000", "1", "1")

	items, err := ledger.ListOpenPositionsWithPnL(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].QuoteUnavailable, items[0].QuoteError)
	require.NotNil(t, items[0].CurrentPrice)
	assert.True(t, dec("2300").Equal(*items[0].CurrentPrice))
}
