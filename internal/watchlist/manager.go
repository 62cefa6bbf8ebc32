// Package watchlist owns the user's named watchlists: creation and removal,
// symbol suggestions, and concurrent price refresh against the backend.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/directory"
	"github.com/newthinker/stockdash/internal/identity"
	"github.com/newthinker/stockdash/internal/logger"
	"github.com/newthinker/stockdash/internal/quote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Messages shown in the component-level error slot.
const (
	MsgLoadFailed            = "Failed to fetch watchlist"
	MsgDirectoryFailed       = "Failed to load symbol list"
	MsgRemoveWatchlistFailed = "Failed to remove watchlist"
	MsgRemoveStockFailed     = "Failed to remove stock"
	MsgSaveStockFailed       = "Failed to save stock"
)

var (
	errSuperseded = errors.New("refresh superseded")
	errClosed     = errors.New("watchlist manager closed")
)

// Store persists watchlists on the backend.
type Store interface {
	LoadWatchlists(ctx context.Context, userID string) ([]core.Watchlist, error)
	PersistEntry(ctx context.Context, watchlist string, entry core.Entry, userID string) error
	RemoveWatchlist(ctx context.Context, name string) error
	RemoveEntry(ctx context.Context, watchlist, symbol, userID string) error
}

// DirectoryLoader loads the symbol directory.
type DirectoryLoader interface {
	Load(ctx context.Context) (*directory.Directory, error)
}

// Recorder receives refresh outcomes and collection sizes.
type Recorder interface {
	RecordRefresh(outcome string, seconds float64)
	SetWatchlistCounts(watchlists, entries int)
}

// Deps are the collaborators of a Manager. Prices, Store and Identity are
// required.
type Deps struct {
	Prices    quote.PriceFetcher
	Store     Store
	Directory DirectoryLoader
	Identity  identity.Provider
	Logger    *zap.Logger
	Metrics   Recorder
}

// persistingFetcher is a PriceFetcher whose lookup also stores the entry,
// as the backend's /current-price does.
type persistingFetcher interface {
	PersistsOnFetch() bool
}

// Option configures a Manager
type Option func(*Manager)

// WithConfirmedRemoval makes entry removal wait for the backend, the same as
// watchlist removal. The entry is marked pending meanwhile and restored if
// the backend refuses.
func WithConfirmedRemoval() Option {
	return func(m *Manager) { m.confirmRemoval = true }
}

// WithRefreshConcurrency caps concurrent refreshes in a batch. Zero means
// no cap.
func WithRefreshConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

// WithDirectory installs an already loaded directory.
func WithDirectory(d *directory.Directory) Option {
	return func(m *Manager) { m.st.dir = d }
}

// State is a point-in-time copy of everything the dashboard renders.
type State struct {
	Watchlists  []core.Watchlist `json:"watchlists"`
	Active      string           `json:"active"`
	Input       string           `json:"input"`
	Suggestions []core.Symbol    `json:"suggestions"`
	Loading     bool             `json:"loading"`
	Error       string           `json:"error,omitempty"`
}

type state struct {
	dir         *directory.Directory
	lists       []core.Watchlist
	active      string
	input       string
	suggestions []core.Symbol
	loading     int
	errMsg      string
}

// Manager is safe for concurrent use. Every mutation runs as a function of
// the current state under one lock, so concurrent completions never
// overwrite each other.
type Manager struct {
	prices   quote.PriceFetcher
	store    Store
	loader   DirectoryLoader
	identity identity.Provider
	logger   *zap.Logger
	metrics  Recorder

	confirmRemoval bool
	concurrency    int
	fetchPersists  bool

	mu    sync.Mutex
	st    state
	tasks *taskSet
}

// New creates a Manager.
func New(deps Deps, opts ...Option) *Manager {
	m := &Manager{
		prices:   deps.Prices,
		store:    deps.Store,
		loader:   deps.Directory,
		identity: deps.Identity,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		tasks:    newTaskSet(),
		st: state{
			lists:       []core.Watchlist{},
			suggestions: []core.Symbol{},
		},
	}
	if m.identity == nil {
		m.identity = identity.Anonymous()
	}
	m.logger = logger.OrNop(m.logger)
	if p, ok := m.prices.(persistingFetcher); ok {
		m.fetchPersists = p.PersistsOnFetch()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) update(fn func(s *state)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.st)

	if m.metrics != nil {
		entries := 0
		for _, l := range m.st.lists {
			entries += len(l.Entries)
		}
		m.metrics.SetWatchlistCounts(len(m.st.lists), entries)
	}
}

func (m *Manager) fail(msg string, err error, fields ...zap.Field) {
	m.logger.Error(msg, append(fields, zap.Error(err))...)
	m.update(func(s *state) { s.errMsg = msg })
}

func (m *Manager) userID() string {
	return identity.UserIDOf(m.identity)
}

// Initialize loads the symbol directory and, when signed in, the persisted
// watchlists with freshly fetched prices. Every entry is refreshed
// concurrently; the collection is replaced once, after all refreshes have
// settled. A failed refresh marks only its entry unavailable.
func (m *Manager) Initialize(ctx context.Context) error {
	var dirErr error
	if m.loader != nil {
		dir, err := m.loader.Load(ctx)
		if err != nil {
			dirErr = fmt.Errorf("loading symbol directory: %w", err)
		} else {
			m.SetDirectory(dir)
		}
	}
	// reported last: every price refresh clears the error slot
	reportDir := func() error {
		if dirErr != nil {
			m.fail(MsgDirectoryFailed, dirErr)
		}
		return dirErr
	}

	userID := m.userID()
	if userID == "" {
		m.logger.Debug("not signed in, skipping watchlist load")
		return reportDir()
	}

	loaded, err := m.store.LoadWatchlists(ctx, userID)
	if err != nil {
		m.fail(MsgLoadFailed, err, zap.String("user_id", userID))
		return fmt.Errorf("loading watchlists: %w", err)
	}

	refreshed, superseded := m.refreshLists(ctx, loaded)
	if m.tasks.isClosed() {
		return errClosed
	}

	m.update(func(s *state) {
		s.lists = merge(refreshed, superseded, s.lists)
	})

	m.logger.Info("watchlists loaded",
		zap.String("user_id", userID),
		zap.Int("watchlists", len(refreshed)),
	)
	return reportDir()
}

// Refresh re-fetches the price of every entry and applies the results in a
// single update.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	current := cloneLists(m.st.lists)
	m.mu.Unlock()

	refreshed, superseded := m.refreshLists(ctx, current)
	if m.tasks.isClosed() {
		return
	}

	m.update(func(s *state) {
		for _, r := range refreshed {
			for _, e := range r.Entries {
				if superseded[taskKey{r.Name, e.Symbol}] {
					continue
				}
				setEntryPrice(s.lists, r.Name, e)
			}
		}
	})
}

func setEntryPrice(lists []core.Watchlist, name string, fresh core.Entry) {
	for i := range lists {
		if lists[i].Name != name {
			continue
		}
		for j := range lists[i].Entries {
			if lists[i].Entries[j].Symbol == fresh.Symbol {
				lists[i].Entries[j].Price = fresh.Price
				lists[i].Entries[j].Err = fresh.Err
			}
		}
	}
}

// refreshLists fetches a price for every entry of lists and waits for all of
// them. Each goroutine writes only its own slot of the returned copy. An
// entry repeated under a same-named watchlist is fetched once.
func (m *Manager) refreshLists(ctx context.Context, lists []core.Watchlist) ([]core.Watchlist, map[taskKey]bool) {
	out := cloneLists(lists)

	type job struct {
		key   taskKey
		name  string
		entry *core.Entry
		dups  []*core.Entry
	}
	var jobs []*job
	byKey := make(map[taskKey]*job)
	for i := range out {
		for j := range out[i].Entries {
			e := &out[i].Entries[j]
			key := taskKey{out[i].Name, e.Symbol}
			if prev, ok := byKey[key]; ok {
				prev.dups = append(prev.dups, e)
				continue
			}
			jb := &job{key: key, name: out[i].Name, entry: e}
			byKey[key] = jb
			jobs = append(jobs, jb)
		}
	}

	results := make([]refreshResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for i, jb := range jobs {
		g.Go(func() error {
			results[i] = m.refresh(gctx, jb.entry.Symbol, jb.entry.Name, jb.name)
			return nil
		})
	}
	_ = g.Wait()

	superseded := make(map[taskKey]bool)
	for i, jb := range jobs {
		res := results[i]
		if !res.current {
			// the newer refresh owns the price
			superseded[jb.key] = true
			continue
		}
		for _, e := range append([]*core.Entry{jb.entry}, jb.dups...) {
			e.Price = res.price
			e.Err = errText(res.err)
		}
	}
	return out, superseded
}

// merge lays loaded watchlists over the local ones. Local watchlists and
// entries the backend does not know about are kept, as are display flags.
// A loaded entry whose refresh was superseded yields to the local entry.
func merge(loaded []core.Watchlist, superseded map[taskKey]bool, local []core.Watchlist) []core.Watchlist {
	out := make([]core.Watchlist, 0, len(loaded)+len(local))
	used := make(map[int]bool)

	for _, l := range loaded {
		w := l.Clone()
		for i, cur := range local {
			if used[i] || cur.Name != l.Name {
				continue
			}
			used[i] = true
			w.Open = cur.Open
			for _, e := range cur.Entries {
				idx := -1
				for k := range w.Entries {
					if w.Entries[k].Symbol == e.Symbol {
						idx = k
						break
					}
				}
				switch {
				case idx < 0:
					w.Entries = append(w.Entries, e)
				case superseded[taskKey{l.Name, e.Symbol}]:
					w.Entries[idx] = e
				}
			}
			break
		}
		out = append(out, w)
	}

	for i, cur := range local {
		if !used[i] {
			out = append(out, cur.Clone())
		}
	}
	return out
}

type refreshResult struct {
	price   core.Price
	err     error
	current bool
}

// RefreshEntryPrice fetches the current price of one entry. Failures yield
// the unavailable marker; nothing is returned as an error. A refresh
// superseded by a newer one for the same entry also yields unavailable.
func (m *Manager) RefreshEntryPrice(ctx context.Context, symbol, companyName, watchlistName string) core.Price {
	res := m.refresh(ctx, symbol, companyName, watchlistName)
	if !res.current {
		return core.Unavailable()
	}
	return res.price
}

func (m *Manager) refresh(ctx context.Context, symbol, companyName, watchlistName string) refreshResult {
	key := taskKey{watchlistName, symbol}
	tctx, id, ok := m.tasks.start(ctx, key)
	if !ok {
		return refreshResult{price: core.Unavailable(), err: errClosed}
	}

	m.update(func(s *state) {
		s.loading++
		s.errMsg = ""
	})
	defer m.update(func(s *state) { s.loading-- })

	start := time.Now()
	price, err := m.prices.FetchPrice(tctx, core.PriceQuery{
		Symbol:    symbol,
		Name:      companyName,
		Watchlist: watchlistName,
		UserID:    m.userID(),
	})
	current := m.tasks.finish(key, id)

	outcome := "ok"
	switch {
	case !current:
		outcome = "superseded"
		price, err = core.Unavailable(), errSuperseded
	case err != nil:
		outcome = "error"
		price = core.Unavailable()
		m.logger.Warn("price refresh failed",
			zap.String("symbol", symbol),
			zap.String("watchlist", watchlistName),
			zap.Error(err),
		)
	case !price.IsAvailable():
		outcome = "error"
		err = core.ErrPriceUnavailable
	}
	if m.metrics != nil {
		m.metrics.RecordRefresh(outcome, time.Since(start).Seconds())
	}

	return refreshResult{price: price, err: err, current: current}
}

// CreateWatchlist appends an empty watchlist and makes it the active one.
// An empty name is ignored. Names are not required to be unique.
func (m *Manager) CreateWatchlist(name string) bool {
	if name == "" {
		return false
	}
	m.update(func(s *state) {
		s.lists = append(s.lists, core.Watchlist{Name: name, Entries: []core.Entry{}})
		s.active = name
	})
	return true
}

// SetActiveWatchlist selects the target for new entries and toggles the
// open flag of the watchlist(s) with that name. The name is not validated.
func (m *Manager) SetActiveWatchlist(name string) {
	m.update(func(s *state) {
		for i := range s.lists {
			if s.lists[i].Name == name {
				s.lists[i].Open = !s.lists[i].Open
			}
		}
		s.active = name
	})
}

// SetDirectory replaces the symbol directory and refilters the input.
func (m *Manager) SetDirectory(d *directory.Directory) {
	m.update(func(s *state) {
		s.dir = d
		s.suggestions = d.Filter(s.input)
	})
}

// SetInput replaces the search buffer and returns the new suggestions.
func (m *Manager) SetInput(text string) []core.Symbol {
	var out []core.Symbol
	m.update(func(s *state) {
		s.input = text
		s.suggestions = s.dir.Filter(text)
		out = append([]core.Symbol(nil), s.suggestions...)
	})
	return out
}

// LookupSymbol finds ticker in the loaded directory, ignoring case.
func (m *Manager) LookupSymbol(ticker string) (core.Symbol, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.dir.Lookup(ticker)
}

// AddSuggestionToActive adds symbol to the active watchlist once its price
// has been fetched. It does nothing, returning ErrNoActiveWatchlist or
// ErrDuplicateEntry, when there is no active watchlist or the symbol is
// already in it. The search buffer is cleared either way.
//
// The entry is persisted with Store.PersistEntry, unless the price fetcher
// stores it as part of a successful lookup (the backend source). If a
// concurrent reload brings the same entry in while the price is fetched,
// the fetched price is applied to it.
func (m *Manager) AddSuggestionToActive(ctx context.Context, symbol, companyName string) (core.Entry, error) {
	var (
		active string
		dup    bool
	)
	m.update(func(s *state) {
		s.input = ""
		s.suggestions = []core.Symbol{}
		active = s.active
		if i := firstNamed(s.lists, active); i >= 0 {
			dup = s.lists[i].Has(symbol)
		}
	})

	if active == "" {
		m.logger.Debug("no active watchlist, ignoring suggestion", zap.String("symbol", symbol))
		return core.Entry{}, core.ErrNoActiveWatchlist
	}
	if dup {
		m.logger.Info("symbol already in watchlist",
			zap.String("symbol", symbol),
			zap.String("watchlist", active),
		)
		return core.Entry{}, core.ErrDuplicateEntry
	}

	res := m.refresh(ctx, symbol, companyName, active)
	if !res.current {
		return core.Entry{}, fmt.Errorf("adding %s to %s: %w", symbol, active, res.err)
	}
	entry := core.Entry{Symbol: symbol, Name: companyName, Price: res.price, Err: errText(res.err)}

	if m.fetchPersists && res.err == nil {
		m.logger.Debug("price fetch persisted entry", zap.String("symbol", symbol), zap.String("watchlist", active))
	} else if err := m.store.PersistEntry(ctx, active, entry, m.userID()); err != nil {
		m.fail(MsgSaveStockFailed, err,
			zap.String("symbol", symbol),
			zap.String("watchlist", active),
		)
	}

	var addErr error
	m.update(func(s *state) {
		i := firstNamed(s.lists, active)
		switch {
		case i < 0:
			addErr = core.WrapError(core.ErrWatchlistNotFound, fmt.Errorf("%s was removed", active))
		case s.lists[i].Has(symbol):
			// a reload brought the entry in meanwhile; this price is newer
			setEntryPrice(s.lists[i:i+1], active, entry)
		default:
			s.lists[i].Entries = append(s.lists[i].Entries, entry)
		}
	})
	if addErr != nil {
		return core.Entry{}, addErr
	}
	return entry, nil
}

// RemoveWatchlist deletes the watchlist on the backend and, only once that
// succeeded, locally. Clears the active target if it was this watchlist.
func (m *Manager) RemoveWatchlist(ctx context.Context, name string) error {
	if err := m.store.RemoveWatchlist(ctx, name); err != nil {
		m.fail(MsgRemoveWatchlistFailed, err, zap.String("watchlist", name))
		return fmt.Errorf("removing watchlist %s: %w", name, err)
	}

	m.tasks.cancelWatchlist(name)
	m.update(func(s *state) {
		kept := s.lists[:0]
		for _, l := range s.lists {
			if l.Name != name {
				kept = append(kept, l)
			}
		}
		s.lists = kept
		if s.active == name {
			s.active = ""
		}
	})
	return nil
}

// RemoveEntry deletes symbol from the watchlist on the backend. By default
// the local entry is removed whatever the backend answers and a failure only
// sets the error message; WithConfirmedRemoval keeps the entry unless the
// backend confirms.
func (m *Manager) RemoveEntry(ctx context.Context, watchlistName, symbol string) error {
	if m.confirmRemoval {
		return m.removeEntryConfirmed(ctx, watchlistName, symbol)
	}

	err := m.store.RemoveEntry(ctx, watchlistName, symbol, m.userID())
	m.dropEntry(watchlistName, symbol)
	if err != nil {
		m.fail(MsgRemoveStockFailed, err,
			zap.String("watchlist", watchlistName),
			zap.String("symbol", symbol),
		)
		return fmt.Errorf("removing %s from %s: %w", symbol, watchlistName, err)
	}
	return nil
}

func (m *Manager) removeEntryConfirmed(ctx context.Context, watchlistName, symbol string) error {
	m.markPending(watchlistName, symbol, true)

	if err := m.store.RemoveEntry(ctx, watchlistName, symbol, m.userID()); err != nil {
		m.markPending(watchlistName, symbol, false)
		m.fail(MsgRemoveStockFailed, err,
			zap.String("watchlist", watchlistName),
			zap.String("symbol", symbol),
		)
		return fmt.Errorf("removing %s from %s: %w", symbol, watchlistName, err)
	}

	m.dropEntry(watchlistName, symbol)
	return nil
}

func (m *Manager) dropEntry(watchlistName, symbol string) {
	m.tasks.cancel(taskKey{watchlistName, symbol})
	m.update(func(s *state) {
		for i := range s.lists {
			if s.lists[i].Name != watchlistName {
				continue
			}
			kept := s.lists[i].Entries[:0]
			for _, e := range s.lists[i].Entries {
				if e.Symbol != symbol {
					kept = append(kept, e)
				}
			}
			s.lists[i].Entries = kept
		}
	})
}

func (m *Manager) markPending(watchlistName, symbol string, pending bool) {
	m.update(func(s *state) {
		for i := range s.lists {
			if s.lists[i].Name != watchlistName {
				continue
			}
			for j := range s.lists[i].Entries {
				if s.lists[i].Entries[j].Symbol == symbol {
					s.lists[i].Entries[j].Pending = pending
				}
			}
		}
	})
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Watchlists:  cloneLists(m.st.lists),
		Active:      m.st.active,
		Input:       m.st.input,
		Suggestions: append([]core.Symbol{}, m.st.suggestions...),
		Loading:     m.st.loading > 0,
		Error:       m.st.errMsg,
	}
}

func (m *Manager) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.input
}

// Suggestions returns the directory matches for the current input.
func (m *Manager) Suggestions() []core.Symbol {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Symbol{}, m.st.suggestions...)
}

// Loading reports whether any price refresh is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.loading > 0
}

// Err returns the component-level error message, if any.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.errMsg
}

// ClearError resets the error message.
func (m *Manager) ClearError() {
	m.update(func(s *state) { s.errMsg = "" })
}

// Reset drops every watchlist and the active target, e.g. after logout.
func (m *Manager) Reset() {
	m.update(func(s *state) {
		s.lists = []core.Watchlist{}
		s.active = ""
		s.input = ""
		s.suggestions = []core.Symbol{}
		s.errMsg = ""
	})
}

// Close cancels in-flight refreshes. Results that arrive afterwards are
// discarded.
func (m *Manager) Close() {
	if n := m.tasks.close(); n > 0 {
		m.logger.Debug("cancelled price refreshes", zap.Int("count", n))
	}
}

func firstNamed(lists []core.Watchlist, name string) int {
	for i := range lists {
		if lists[i].Name == name {
			return i
		}
	}
	return -1
}

func cloneLists(lists []core.Watchlist) []core.Watchlist {
	out := make([]core.Watchlist, len(lists))
	for i, l := range lists {
		out[i] = l.Clone()
	}
	return out
}

func errText(err error) string {
	if err == nil || errors.Is(err, errSuperseded) {
		return ""
	}
	return err.Error()
}
