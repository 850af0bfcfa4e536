package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"FinnPipeline/pkg/collector"
	"FinnPipeline/pkg/model"
	"FinnPipeline/pkg/monitor"
)

var kst = time.FixedZone("KST", 9*60*60)

func fixedNow() time.Time {
	return time.Date(2025, 3, 12, 7, 0, 0, 0, kst)
}

type fakeStore struct {
	mu sync.Mutex

	stocks  []model.Stock
	listErr error

	latest     time.Time
	hasLatest  bool
	closes     map[int64]decimal.Decimal
	historyErr error
	gotBefore  time.Time

	upsertErr error
	insertErr error
	panicOn   string

	upserted    []model.StockPrice
	inserted    []model.News
	upsertCalls int
	insertCalls int
}

func (s *fakeStore) ListStocks(context.Context) ([]model.Stock, error) {
	return s.stocks, s.listErr
}

func (s *fakeStore) LatestPriceDate(_ context.Context, before time.Time) (time.Time, bool, error) {
	s.gotBefore = before
	return s.latest, s.hasLatest, s.historyErr
}

func (s *fakeStore) ClosePricesOn(context.Context, time.Time) (map[int64]decimal.Decimal, error) {
	return s.closes, nil
}

func (s *fakeStore) UpsertPrices(_ context.Context, prices []model.StockPrice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserted = append(s.upserted, prices...)
	return int64(len(prices)), nil
}

func (s *fakeStore) InsertNews(_ context.Context, news []model.News) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn == "insert" {
		panic("driver bug")
	}
	s.insertCalls++
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, news...)
	return int64(len(news)), nil
}

// lastSession 相对 fixedNow 最近一个已收盘的美股交易日
var lastSession = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

type fakePrices struct {
	open     bool
	probeErr error
	closes   map[int64]string

	mu      sync.Mutex
	fetched int
	windows []model.CollectionWindow
}

func (p *fakePrices) MarketOpen(context.Context, string, time.Time) (bool, error) {
	return p.open, p.probeErr
}

func (p *fakePrices) Func(createdAt time.Time) collector.FetchFunc[model.StockPrice] {
	return func(ctx context.Context, u collector.Unit) collector.UnitResult[model.StockPrice] {
		p.mu.Lock()
		p.fetched++
		p.windows = append(p.windows, u.Window)
		p.mu.Unlock()

		c, ok := p.closes[u.Stock.ID]
		if !ok {
			return collector.Failed[model.StockPrice](errors.New("unknown symbol"))
		}
		if !inRange(lastSession, u.Window.Start, u.Window.End) {
			return collector.Empty[model.StockPrice]()
		}
		v := decimal.RequireFromString(c)
		return collector.Succeeded([]model.StockPrice{{
			StockID:       u.Stock.ID,
			PriceDate:     lastSession,
			OpenPrice:     v,
			HighPrice:     v,
			LowPrice:      v,
			ClosePrice:    v,
			AdjClosePrice: v,
			CreatedAt:     createdAt,
		}})
	}
}

// inRange 按日期字符串比较，与行情接口的 startDate/endDate 参数一致
func inRange(day, start, end time.Time) bool {
	d := day.Format("2006-01-02")
	return d >= start.Format("2006-01-02") && d <= end.Format("2006-01-02")
}

type fakeNews struct{}

func (fakeNews) Func(createdAt time.Time) collector.FetchFunc[model.News] {
	return func(ctx context.Context, u collector.Unit) collector.UnitResult[model.News] {
		return collector.Succeeded([]model.News{{
			StockID:       u.Stock.ID,
			Title:         fmt.Sprintf("%s headline", u.Stock.SearchKeyword),
			PublishedDate: u.Day(),
			CompanyName:   u.Stock.SearchKeyword,
			CreatedAt:     createdAt,
		}})
	}
}

type fakeNotifier struct {
	err  error
	msgs []model.CompletionMessage
}

func (n *fakeNotifier) PublishCompletion(_ context.Context, msg model.CompletionMessage) error {
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func twoStocks() []model.Stock {
	return []model.Stock{
		{ID: 1, StockCode: "ABC", SearchKeyword: "Acme"},
		{ID: 2, StockCode: "XYZ", SearchKeyword: "Xylo"},
	}
}

func testOptions() Options {
	return Options{
		Source:           "data-collection-function",
		Location:         kst,
		NewsWindowDays:   1,
		ReferenceSymbol:  "SPY",
		SkipClosedMarket: true,
		PriceCollector:   collector.Config{Concurrency: 2},
		NewsCollector:    collector.Config{Concurrency: 2},
		Now:              fixedNow,
	}
}

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(deps, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRun_Success(t *testing.T) {
	store := &fakeStore{stocks: twoStocks()}
	prices := &fakePrices{open: true, closes: map[int64]string{1: "100", 2: "50"}}
	notifier := &fakeNotifier{}
	mon := monitor.NewMonitor(nil)

	out := newTestOrchestrator(t, Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: notifier, Monitor: mon}).
		Run(context.Background())

	if out.Kind != OutcomeSuccess || out.Classification != ClassSuccess {
		t.Fatalf("outcome = %v/%v: %s", out.Kind, out.Classification, out.Message)
	}
	if len(store.upserted) != 2 || len(store.inserted) != 2 {
		t.Errorf("upserted = %d, inserted = %d, want 2, 2", len(store.upserted), len(store.inserted))
	}
	if len(notifier.msgs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.msgs))
	}
	msg := notifier.msgs[0]
	if msg.Status != "SUCCESS" || msg.Source != "data-collection-function" || msg.RunID != out.RunID {
		t.Errorf("message = %+v", msg)
	}
	if msg.CreatedDate != "2025-03-12 07:00:00" {
		t.Errorf("created_date = %q", msg.CreatedDate)
	}
	if !out.Stats.Notified || out.Stats.PricesSaved != 2 || out.Stats.NewsSaved != 2 {
		t.Errorf("stats = %+v", out.Stats)
	}
	if p := out.Payload(); p.Status != "Success" || p.CreatedDate != "2025-03-12 07:00:00" {
		t.Errorf("payload = %+v", p)
	}
	if s, _ := mon.GetStatus(monitor.ComponentPipeline); s.Status != monitor.StatusHealthy {
		t.Errorf("pipeline status = %+v", s)
	}
}

func TestRun_EmptyUniverse(t *testing.T) {
	store := &fakeStore{}
	prices := &fakePrices{open: true}
	notifier := &fakeNotifier{}

	out := newTestOrchestrator(t, Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: notifier}).
		Run(context.Background())

	if out.Kind != OutcomeNothingToDo || !out.OK() {
		t.Errorf("Kind = %v, want nothing_to_do", out.Kind)
	}
	if out.Payload().Status != "No stocks to process" {
		t.Errorf("status = %q", out.Payload().Status)
	}
	if store.upsertCalls+store.insertCalls != 0 {
		t.Errorf("store writes = %d, want 0", store.upsertCalls+store.insertCalls)
	}
	if len(notifier.msgs) != 0 || prices.fetched != 0 {
		t.Errorf("notifications = %d, fetches = %d, want 0, 0", len(notifier.msgs), prices.fetched)
	}
}

func TestRun_MarketClosed(t *testing.T) {
	store := &fakeStore{stocks: twoStocks()}
	prices := &fakePrices{open: false, closes: map[int64]string{1: "100"}}
	notifier := &fakeNotifier{}

	out := newTestOrchestrator(t, Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: notifier}).
		Run(context.Background())

	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v: %s", out.Kind, out.Message)
	}
	if prices.fetched != 0 || store.upsertCalls != 0 {
		t.Errorf("fetched = %d, upserts = %d, want 0, 0", prices.fetched, store.upsertCalls)
	}
	if len(store.inserted) != 2 {
		t.Errorf("news inserted = %d, want 2", len(store.inserted))
	}
	if len(notifier.msgs) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.msgs))
	}
	if !out.Stats.MarketClosed || !out.Stats.PricesSkipped {
		t.Errorf("stats = %+v", out.Stats)
	}
}

func TestRun_NoPriceSource(t *testing.T) {
	store := &fakeStore{stocks: twoStocks()}
	notifier := &fakeNotifier{}

	out := newTestOrchestrator(t, Deps{Store: store, News: fakeNews{}, Notifier: notifier}).
		Run(context.Background())

	if out.Kind != OutcomeSuccess || store.upsertCalls != 0 || len(notifier.msgs) != 1 {
		t.Errorf("Kind = %v, upserts = %d, notifications = %d", out.Kind, store.upsertCalls, len(notifier.msgs))
	}
	if !out.Stats.PricesSkipped || out.Stats.MarketClosed {
		t.Errorf("stats = %+v", out.Stats)
	}
}

func TestRun_PerUnitPriceFailureIsSkipped(t *testing.T) {
	store := &fakeStore{stocks: twoStocks()}
	prices := &fakePrices{open: true, closes: map[int64]string{1: "100"}}
	notifier := &fakeNotifier{}
	mon := monitor.NewMonitor(nil)

	out := newTestOrchestrator(t, Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: notifier, Monitor: mon}).
		Run(context.Background())

	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v: %s", out.Kind, out.Message)
	}
	if len(store.upserted) != 1 || out.Stats.PriceUnitsFailed != 1 {
		t.Errorf("upserted = %d, failed units = %d", len(store.upserted), out.Stats.PriceUnitsFailed)
	}
	if s, _ := mon.GetStatus(monitor.ComponentTiingo); s.Status != monitor.StatusDegraded {
		t.Errorf("tiingo status = %+v", s)
	}
}

func TestRun_ChangeRateFromHistory(t *testing.T) {
	store := &fakeStore{
		stocks:    twoStocks()[:1],
		latest:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		hasLatest: true,
		closes:    map[int64]decimal.Decimal{1: decimal.NewFromInt(100)},
	}
	prices := &fakePrices{open: true, closes: map[int64]string{1: "110"}}

	out := newTestOrchestrator(t, Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: &fakeNotifier{}}).
		Run(context.Background())

	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v: %s", out.Kind, out.Message)
	}
	if got := store.upserted[0].ChangeRate.StringFixed(2); got != "10.00" {
		t.Errorf("ChangeRate = %s, want 10.00", got)
	}
	if want := time.Date(2025, 3, 11, 0, 0, 0, 0, kst); !store.gotBefore.Equal(want) {
		t.Errorf("history lookup before = %v, want %v", store.gotBefore, want)
	}
}

func TestRun_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		store      *fakeStore
		prices     *fakePrices
		notifyErr  error
		kind       OutcomeKind
		class      Classification
		stage      Stage
		notified   bool
		newsStored bool
	}{
		{
			name:  "universe read failure",
			store: &fakeStore{listErr: boom},
			kind:  OutcomeFatal, class: ClassStorage, stage: StageLoadUniverse,
		},
		{
			name:   "probe failure skips prices only",
			store:  &fakeStore{stocks: twoStocks()},
			prices: &fakePrices{probeErr: boom},
			kind:   OutcomePartial, class: ClassUpstream, stage: StageCheckMarket,
			newsStored: true,
		},
		{
			name:   "price upsert failure",
			store:  &fakeStore{stocks: twoStocks(), upsertErr: boom},
			prices: &fakePrices{open: true, closes: map[int64]string{1: "1", 2: "2"}},
			kind:   OutcomePartial, class: ClassStorage, stage: StagePersist,
			newsStored: true,
		},
		{
			name:   "history read failure",
			store:  &fakeStore{stocks: twoStocks(), historyErr: boom},
			prices: &fakePrices{open: true, closes: map[int64]string{1: "1"}},
			kind:   OutcomePartial, class: ClassStorage, stage: StagePersist,
			newsStored: true,
		},
		{
			name:  "news insert failure",
			store: &fakeStore{stocks: twoStocks(), insertErr: boom},
			kind:  OutcomeFatal, class: ClassStorage, stage: StagePersist,
		},
		{
			name:      "notification failure",
			store:     &fakeStore{stocks: twoStocks()},
			notifyErr: boom,
			kind:      OutcomeFatal, class: ClassInternal, stage: StageNotify,
			newsStored: true,
		},
		{
			name:  "panic",
			store: &fakeStore{stocks: twoStocks(), panicOn: "insert"},
			kind:  OutcomeFatal, class: ClassInternal, stage: StagePersist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{err: tt.notifyErr}
			deps := Deps{Store: tt.store, News: fakeNews{}, Notifier: notifier}
			if tt.prices != nil {
				deps.Prices = tt.prices
			}

			out := newTestOrchestrator(t, deps).Run(context.Background())

			if out.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v (%s)", out.Kind, tt.kind, out.Message)
			}
			if out.Classification != tt.class {
				t.Errorf("Classification = %v, want %v", out.Classification.Status(), tt.class.Status())
			}
			if len(out.FailedStages) == 0 || out.FailedStages[len(out.FailedStages)-1] != tt.stage {
				t.Errorf("FailedStages = %v, want last %v", out.FailedStages, tt.stage)
			}
			if out.Cause == nil || out.Message == "" {
				t.Errorf("Cause = %v, Message = %q", out.Cause, out.Message)
			}
			if got := len(notifier.msgs) > 0; got != tt.notified {
				t.Errorf("notified = %v, want %v", got, tt.notified)
			}
			if got := len(tt.store.inserted) > 0; got != tt.newsStored {
				t.Errorf("news stored = %v, want %v", got, tt.newsStored)
			}
		})
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	_, err := New(Deps{News: fakeNews{}, Notifier: &fakeNotifier{}}, testOptions())
	if KindOf(err) != KindConfiguration {
		t.Errorf("KindOf = %v, want configuration", KindOf(err))
	}
	out := Failure("run", err, fixedNow())
	if out.Classification != ClassConfiguration || out.Payload().Status != "Config Error" {
		t.Errorf("outcome = %+v", out)
	}
}

const acmeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Acme</title>
<item><title>Acme wins contract</title><link>https://example.com/acme</link><pubDate>Tue, 11 Mar 2025 22:00:00 GMT</pubDate></item>
</channel></rss>`

// sessionProvider 只返回请求区间内的交易日行情
type sessionProvider struct {
	session time.Time

	mu       sync.Mutex
	requests []string
}

func (p *sessionProvider) GetDailyPrices(_ context.Context, symbol string, start, end time.Time) ([]collector.DailyPrice, error) {
	p.mu.Lock()
	p.requests = append(p.requests, fmt.Sprintf("%s %s..%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02")))
	p.mu.Unlock()

	if !inRange(p.session, start, end) {
		return nil, nil
	}
	hundred := decimal.NewNullDecimal(decimal.NewFromInt(100))
	return []collector.DailyPrice{{
		Date:     p.session.Format(time.RFC3339),
		Open:     hundred,
		High:     hundred,
		Low:      hundred,
		Close:    hundred,
		Volume:   decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		AdjOpen:  hundred,
		AdjHigh:  hundred,
		AdjLow:   hundred,
		AdjClose: hundred,
	}}, nil
}

func TestRun_EndToEnd(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, acmeFeed)
	}))
	defer feed.Close()

	store := &fakeStore{stocks: []model.Stock{{ID: 1, StockCode: "ABC", SearchKeyword: "Acme"}}}
	notifier := &fakeNotifier{}
	deps := Deps{
		Store:    store,
		Prices:   collector.NewPriceFetcher(&sessionProvider{session: lastSession}, nil),
		News:     collector.NewNewsFetcher(collector.NewsConfig{BaseURL: feed.URL, Timeout: 5 * time.Second, LimitPerDay: 30}, nil),
		Notifier: notifier,
	}

	out := newTestOrchestrator(t, deps).Run(context.Background())
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v: %s", out.Kind, out.Message)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("prices = %d, want 1", len(store.upserted))
	}
	price := store.upserted[0]
	if price.StockID != 1 || price.ChangeRate.StringFixed(2) != "0.00" || !price.ClosePrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("price = %+v", price)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("news = %d, want 1", len(store.inserted))
	}
	news := store.inserted[0]
	if news.Title != "Acme wins contract" || news.StockID != 1 || news.CompanyName != "Acme" {
		t.Errorf("news = %+v", news)
	}
	if len(notifier.msgs) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.msgs))
	}
}

func TestRun_DefaultPriceWindowReachesLastSession(t *testing.T) {
	// 首尔时间周二早上7点，最近一个已收盘的美股交易日是周一
	now := time.Date(2025, 3, 11, 7, 0, 0, 0, kst)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	provider := &sessionProvider{session: monday}
	store := &fakeStore{stocks: []model.Stock{{ID: 1, StockCode: "ABC", SearchKeyword: "Acme"}}}
	opts := testOptions()
	opts.Now = func() time.Time { return now }

	o, err := New(Deps{
		Store:    store,
		Prices:   collector.NewPriceFetcher(provider, nil),
		News:     fakeNews{},
		Notifier: &fakeNotifier{},
	}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := o.Run(context.Background())
	if out.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v: %s", out.Kind, out.Message)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("upserted = %d, want 1 (requests %v)", len(store.upserted), provider.requests)
	}
	if got := store.upserted[0].PriceDate; !got.Equal(monday) {
		t.Errorf("PriceDate = %v, want %v", got, monday)
	}

	want := []string{"SPY 2025-03-10..2025-03-11", "ABC 2025-03-10..2025-03-11"}
	if fmt.Sprint(provider.requests) != fmt.Sprint(want) {
		t.Errorf("requests = %v, want %v", provider.requests, want)
	}
	if want := time.Date(2025, 3, 10, 0, 0, 0, 0, kst); !store.gotBefore.Equal(want) {
		t.Errorf("history lookup before = %v, want %v", store.gotBefore, want)
	}
}

func TestRun_PriceWindowFollowsOptions(t *testing.T) {
	store := &fakeStore{stocks: twoStocks()[:1]}
	prices := &fakePrices{open: true, closes: map[int64]string{1: "100"}}
	opts := testOptions()
	opts.PriceWindowDays = 5

	o, err := New(Deps{Store: store, Prices: prices, News: fakeNews{}, Notifier: &fakeNotifier{}}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.Run(context.Background())

	if len(prices.windows) != 1 {
		t.Fatalf("windows = %v", prices.windows)
	}
	w := prices.windows[0]
	if want := time.Date(2025, 3, 8, 0, 0, 0, 0, kst); !w.Start.Equal(want) {
		t.Errorf("window start = %v, want %v", w.Start, want)
	}
	if want := time.Date(2025, 3, 12, 0, 0, 0, 0, kst); !w.End.Equal(want) {
		t.Errorf("window end = %v, want %v", w.End, want)
	}
}
