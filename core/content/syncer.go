package content

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
	"github.com/trezcool/schoolconnect/core/school"
	"github.com/trezcool/schoolconnect/core/user"
)

const (
	defaultPageSize = 10
	defaultTimeout  = 30 * time.Second

	msgLoadFailed   = "Failed to load content. Please try again."
	msgFetchFailed  = "Failed to fetch content"
	msgNoContent    = "No content data available"
	msgInvalidItems = "Some content items could not be read"
)

var (
	// ErrNoSession is returned by fetching operations while no user is active.
	ErrNoSession = core.NewNotFoundError("active session")

	nowFunc = time.Now // mockable
)

type (
	// Cache is the per-user cache of user.Store.
	Cache interface {
		StoreUserCache(ctx context.Context, username, kind string, data interface{}) error
		UserCache(ctx context.Context, username, kind string) (user.CacheEntry, bool, error)
	}

	Options struct {
		Backend  school.Backend
		Cache    Cache
		Logger   core.Logger
		PageSize int
		Timeout  time.Duration
	}

	// View is a snapshot of the Syncer state for the presentation layer.
	View struct {
		Username   string   `json:"username"`
		Bundle     Bundle   `json:"content"`
		Filter     Category `json:"filter"`
		Page       int      `json:"page"`
		HasMore    bool     `json:"hasMore"`
		Loading    bool     `json:"loading"`
		Refreshing bool     `json:"refreshing"`
		Error      string   `json:"error,omitempty"`
	}

	// snapshot is what is cached per user under user.CacheContentData.
	snapshot struct {
		Bundle  Bundle   `json:"bundle"`
		Page    int      `json:"page"`
		Filter  Category `json:"filter"`
		HasMore bool     `json:"hasMore"`
	}

	// Syncer is the ContentSync of the active user: paginated fetch, merge and category filtering.
	// Network calls run without holding mu; their result is applied only if the generation
	// they started under is still current.
	Syncer struct {
		backend school.Backend
		cache   Cache
		logger  core.Logger
		opts    Options

		mu         sync.Mutex
		session    *auth.Payload
		bundle     Bundle
		filter     Category
		page       int
		hasMore    bool
		loading    bool
		refreshing bool
		errMsg     string
		generation uint64
		observers  []func(View)
		bus        *core.EventBus
	}

	applyMode int
)

const (
	modeReplace applyMode = iota
	modeMerge
)

func NewSyncer(opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Syncer{
		backend: opts.Backend,
		cache:   opts.Cache,
		logger:  opts.Logger,
		opts:    opts,
		filter:  CategoryAll,
	}
}

// Subscribe registers an observer called with a fresh View after every state change.
func (s *Syncer) Subscribe(fn func(View)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// View returns a copy of the current state.
func (s *Syncer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Syncer) viewLocked() View {
	v := View{
		Bundle:     s.bundle.Clone(),
		Filter:     s.filter,
		Page:       s.page,
		HasMore:    s.hasMore,
		Loading:    s.loading,
		Refreshing: s.refreshing,
		Error:      s.errMsg,
	}
	if s.session != nil {
		v.Username = s.session.Username
	}
	return v
}

func (s *Syncer) notify(ctx context.Context) {
	s.mu.Lock()
	view := s.viewLocked()
	observers := make([]func(View), len(s.observers))
	copy(observers, s.observers)
	bus := s.bus
	s.mu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
	if bus != nil {
		bus.Publish(ctx, core.Event{Type: core.EventContentUpdated, Username: view.Username, Data: view})
	}
}

// resetLocked clears the in-memory state for `p` and starts a new generation.
func (s *Syncer) resetLocked(p *auth.Payload) uint64 {
	s.generation++
	s.session = p
	s.bundle = Bundle{}
	s.filter = CategoryAll
	s.page = 0
	s.hasMore = true
	s.loading = false
	s.refreshing = false
	s.errMsg = ""
	return s.generation
}

// LoadInitial starts the feed of `p`. The first page embedded in the login payload is used
// as is; without one, page 0 is fetched.
func (s *Syncer) LoadInitial(ctx context.Context, p *auth.Payload) error {
	if p == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	gen := s.resetLocked(p)
	if p.HasList() {
		items := s.parseItems(p.List)
		s.bundle = NewBundle(items)
		s.hasMore = len(p.List) >= s.opts.PageSize
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.store(ctx, p.Username, snap)
		s.notify(ctx)
		return nil
	}
	s.loading = true
	s.mu.Unlock()
	s.notify(ctx)

	return s.fetchAndApply(ctx, gen, p, 0, CategoryAll, modeReplace)
}

// Refresh fetches page 0 of the active filter again and replaces its content.
// It is a no-op while a refresh is in flight.
func (s *Syncer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.refreshing {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen, p, cat := s.generation, s.session, s.filter
	s.page = 0
	s.hasMore = true
	s.refreshing = true
	s.loading = false
	s.mu.Unlock()
	s.notify(ctx)

	return s.fetchAndApply(ctx, gen, p, 0, cat, modeReplace)
}

// LoadMore fetches and merges the next page. It is a no-op when there is nothing more to load
// or a fetch is in flight. The page counter only moves once the page arrived.
func (s *Syncer) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if !s.hasMore || s.loading || s.refreshing {
		s.mu.Unlock()
		return nil
	}
	gen, p, cat, next := s.generation, s.session, s.filter, s.page+1
	s.loading = true
	s.mu.Unlock()
	s.notify(ctx)

	return s.fetchAndApply(ctx, gen, p, next, cat, modeMerge)
}

// SetFilter switches the active category. A different filter resets pagination and replaces
// that category's content with a fresh page 0.
func (s *Syncer) SetFilter(ctx context.Context, name string) error {
	cat, err := ParseCategory(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	if cat == s.filter {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen, p := s.generation, s.session
	s.filter = cat
	s.page = 0
	s.hasMore = true
	s.loading = true
	s.refreshing = false
	s.mu.Unlock()
	s.notify(ctx)

	return s.fetchAndApply(ctx, gen, p, 0, cat, modeReplace)
}

// SwitchUser makes `p` the active user. The outgoing user's state is cached first; the
// incoming one is restored from its cache when present, loaded from scratch otherwise.
func (s *Syncer) SwitchUser(ctx context.Context, p *auth.Payload) error {
	if p == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	var (
		outgoing string
		snap     snapshot
	)
	if s.session != nil && s.session.Username != p.Username {
		outgoing, snap = s.session.Username, s.snapshotLocked()
	}
	gen := s.resetLocked(p)
	s.mu.Unlock()

	if outgoing != "" {
		s.store(ctx, outgoing, snap)
	}

	if cached, ok := s.cached(ctx, p.Username); ok {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return nil
		}
		s.bundle = cached.Bundle
		s.page = cached.Page
		s.filter = cached.Filter
		s.hasMore = cached.HasMore
		if s.filter == "" {
			s.filter = CategoryAll
		}
		s.mu.Unlock()
		s.notify(ctx)
		return nil
	}
	return s.LoadInitial(ctx, p)
}

// Reset forgets the active user (logout).
func (s *Syncer) Reset(ctx context.Context) {
	s.mu.Lock()
	s.resetLocked(nil)
	s.mu.Unlock()
	s.notify(ctx)
}

// Listen drives the Syncer from session events and publishes EventContentUpdated on `bus`.
func (s *Syncer) Listen(bus *core.EventBus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	bus.Subscribe(core.EventSessionStarted, func(ctx context.Context, ev core.Event) {
		p, ok := ev.Data.(*auth.Payload)
		if !ok {
			return
		}
		s.mu.Lock()
		switching := s.session != nil && s.session.Username != p.Username
		s.mu.Unlock()

		var err error
		if switching {
			err = s.SwitchUser(ctx, p)
		} else {
			err = s.LoadInitial(ctx, p)
		}
		if err != nil {
			s.logger.Warn("loading content for new session", err, p)
		}
	})
	bus.Subscribe(core.EventSessionSwitched, func(ctx context.Context, ev core.Event) {
		if p, ok := ev.Data.(*auth.Payload); ok {
			if err := s.SwitchUser(ctx, p); err != nil {
				s.logger.Warn("loading content after switch", err, p)
			}
		}
	})
	bus.Subscribe(core.EventSessionEnded, func(ctx context.Context, _ core.Event) {
		s.Reset(ctx)
	})
}

// Run refreshes the feed every `interval` while a user is active and nothing is in flight.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := s.session != nil && !s.loading && !s.refreshing
			s.mu.Unlock()
			if !idle {
				continue
			}
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("auto-refreshing content", err)
			}
		}
	}
}

func (s *Syncer) fetchAndApply(ctx context.Context, gen uint64, p *auth.Payload, page int, cat Category, mode applyMode) error {
	items, count, err := s.fetch(ctx, p, page, cat)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Info("discarding stale content response", map[string]interface{}{"page": page, "filter": string(cat)}, p)
		return nil
	}
	s.loading = false
	s.refreshing = false
	if err != nil {
		s.errMsg = userMessage(err)
		s.mu.Unlock()
		s.logger.Warn("fetching content", err, map[string]interface{}{"page": page, "filter": string(cat)}, p)
		s.notify(ctx)
		return err
	}

	switch mode {
	case modeMerge:
		s.bundle.Merge(items)
	default:
		s.bundle.Replace(cat, items)
	}
	s.page = page
	s.hasMore = count >= s.opts.PageSize
	s.errMsg = ""
	// taken with the result so a switch after unlock cannot change whose cache is written
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.store(ctx, p.Username, snap)
	s.notify(ctx)
	return nil
}

func (s *Syncer) fetch(ctx context.Context, p *auth.Payload, page int, cat Category) ([]Item, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req := school.NewLoginRequest(p.OriginalUserName, p.OriginalPassword, page, s.opts.PageSize, cat.Filter(), page == 0, nowFunc())
	resp, err := s.backend.ValidateLogin(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if !resp.Succeeded() {
		msg := resp.ResultMsg
		if msg == "" {
			msg = msgFetchFailed
		}
		return nil, 0, core.NewServerError(msg, 0)
	}
	if !resp.HasList() {
		return nil, 0, core.NewServerError(msgNoContent, 0)
	}
	return s.parseItems(resp.List), len(resp.List), nil
}

func (s *Syncer) parseItems(list []json.RawMessage) []Item {
	items := make([]Item, 0, len(list))
	var bad int
	for _, raw := range list {
		it, err := ParseItem(raw)
		if err != nil {
			bad++
			continue
		}
		items = append(items, it)
	}
	if bad > 0 {
		s.logger.Warn(msgInvalidItems, map[string]interface{}{"skipped": bad})
	}
	return items
}

func (s *Syncer) snapshotLocked() snapshot {
	return snapshot{
		Bundle:  s.bundle.Clone(),
		Page:    s.page,
		Filter:  s.filter,
		HasMore: s.hasMore,
	}
}

func (s *Syncer) store(ctx context.Context, username string, snap snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.StoreUserCache(ctx, username, user.CacheContentData, snap); err != nil {
		s.logger.Warn("caching content", err, map[string]interface{}{"username": username})
	}
}

// cached reads a user's cached state; read failures count as a miss.
func (s *Syncer) cached(ctx context.Context, username string) (snapshot, bool) {
	if s.cache == nil {
		return snapshot{}, false
	}
	entry, found, err := s.cache.UserCache(ctx, username, user.CacheContentData)
	if err != nil {
		s.logger.Warn("reading content cache", err, map[string]interface{}{"username": username})
		return snapshot{}, false
	}
	if !found {
		return snapshot{}, false
	}
	var snap snapshot
	if err := entry.Decode(&snap); err != nil {
		s.logger.Warn("decoding content cache", err, map[string]interface{}{"username": username})
		return snapshot{}, false
	}
	return snap, true
}

// userMessage is the message shown for a failed fetch: the backend's own words when it
// answered with a failure, a generic retry hint otherwise.
func userMessage(err error) string {
	var srvErr *core.ServerError
	if errors.As(err, &srvErr) && srvErr.StatusCode == 0 && srvErr.Message != "" {
		return srvErr.Message
	}
	return msgLoadFailed
}
