package feed

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/logging"
)

const (
	DefaultRadiusKm     = 10
	DefaultNoPostsDelay = 6 * time.Second
)

// Locator obtains the viewer's current position.
type Locator interface {
	Locate(ctx context.Context) (geo.Point, error)
}

// Options configures a Controller.
type Options struct {
	ViewerID string
	RadiusKm float64
	// NoPostsDelay is how long the feed must stay empty after a fetch before
	// feed.empty is published. Zero disables the signal.
	NoPostsDelay time.Duration
	Bus          *bus.Bus
	Logger       *zap.Logger
}

// State is a point-in-time copy of the controller state.
type State struct {
	Mode             Mode
	Items            []Post
	Cursors          map[Mode]Cursor
	FirstFetch       map[Mode]bool
	Loading          bool
	LoadingMore      bool
	Position         *geo.Point
	RadiusKm         float64
	Categories       []string
	PermissionDenied bool
	NoPosts          bool
	Err              error
}

// Controller owns the feed state for one viewer: the active mode, one cursor
// per mode, and the ordered items shown. Methods block on the underlying
// Query and are safe for concurrent use; a response belonging to a superseded
// fetch generation is dropped.
type Controller struct {
	query Query
	bus   *bus.Bus
	log   *zap.Logger

	viewerID     string
	noPostsDelay time.Duration

	mu               sync.Mutex
	mode             Mode
	cursors          map[Mode]Cursor
	firstFetch       map[Mode]bool
	items            []Post
	seen             map[string]struct{}
	loading          bool
	loadingMore      bool
	position         *geo.Point
	radiusKm         float64
	categories       []string
	permissionDenied bool
	noPosts          bool
	err              error
	gen              uint64
	emptyTimer       *time.Timer
	closed           bool
}

// NewController creates a controller in ForYou mode with no position.
// Nothing is fetched until SetMode, SetPosition or RequestLocation is called.
func NewController(q Query, opts Options) *Controller {
	radius := opts.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	c := &Controller{
		query:        q,
		bus:          opts.Bus,
		log:          logging.OrNop(opts.Logger).Named("feed"),
		viewerID:     opts.ViewerID,
		noPostsDelay: opts.NoPostsDelay,
		mode:         ForYou,
		radiusKm:     radius,
		seen:         make(map[string]struct{}),
	}
	c.resetLocked()
	return c
}

// Option adjusts filters as part of SetMode.
type Option func(*Controller)

// WithRadius sets the ForYou search radius in kilometres.
func WithRadius(km float64) Option {
	return func(c *Controller) {
		if km > 0 {
			c.radiusKm = km
		}
	}
}

// WithCategories sets the ForYou category filter. No categories means all.
func WithCategories(categories ...string) Option {
	return func(c *Controller) {
		c.categories = slices.Clone(categories)
	}
}

// SetMode switches to mode, discards both cursors and all items, and fetches
// the first page.
func (c *Controller) SetMode(ctx context.Context, mode Mode, opts ...Option) error {
	c.mu.Lock()
	c.mode = mode
	for _, o := range opts {
		o(c)
	}
	c.resetLocked()
	c.mu.Unlock()
	return c.Fetch(ctx, false)
}

// Fetch loads a page for the active mode. With loadMore it continues from the
// mode's cursor and appends; otherwise it starts over and replaces items.
// ForYou without a known position is a no-op.
func (c *Controller) Fetch(ctx context.Context, loadMore bool) error {
	_, err := c.fetch(ctx, loadMore)
	return err
}

func (c *Controller) fetch(ctx context.Context, loadMore bool) (uint64, error) {
	c.mu.Lock()
	if c.closed || (c.mode == ForYou && c.position == nil) {
		gen := c.gen
		c.mu.Unlock()
		return gen, nil
	}

	mode := c.mode
	var cursor Cursor
	if loadMore {
		cursor = c.cursors[mode]
		c.loadingMore = true
	} else {
		c.gen++
		c.loading = true
		c.loadingMore = false
	}
	gen := c.gen
	filter := Filter{
		Mode:       mode,
		ViewerID:   c.viewerID,
		RadiusKm:   c.radiusKm,
		Categories: slices.Clone(c.categories),
		FirstFetch: c.firstFetch[mode],
	}
	if mode == ForYou {
		p := *c.position
		filter.Position = &p
	}
	c.mu.Unlock()

	page, err := c.query.Fetch(ctx, filter, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		c.log.Debug("discarding superseded page", zap.String("mode", string(mode)), zap.Uint64("gen", gen))
		return gen, nil
	}
	if loadMore {
		c.loadingMore = false
	} else {
		c.loading = false
	}

	if err != nil {
		fe := &FetchError{Mode: mode, LoadMore: loadMore, Err: err}
		c.err = fe
		c.log.Warn("feed fetch failed", zap.String("mode", string(mode)), zap.Bool("load_more", loadMore), zap.Error(err))
		c.publishLocked(bus.KindFeedError, fe)
		c.armEmptyTimerLocked(gen)
		return gen, fe
	}

	c.err = nil
	if !loadMore {
		c.items = nil
		clear(c.seen)
	}
	for _, p := range page.Posts {
		if _, dup := c.seen[p.ID]; dup {
			continue
		}
		c.seen[p.ID] = struct{}{}
		c.items = append(c.items, p)
	}
	c.cursors[mode] = page.Next
	c.firstFetch[mode] = false
	if len(c.items) > 0 {
		c.noPosts = false
	}
	c.publishLocked(bus.KindFeedUpdated, len(c.items))
	c.armEmptyTimerLocked(gen)
	return gen, nil
}

// OnScrollEndReached fetches the next page when one is available and no
// load-more is already in flight.
func (c *Controller) OnScrollEndReached(ctx context.Context) error {
	c.mu.Lock()
	more := !c.loadingMore && !c.loading && c.cursors[c.mode] != ""
	c.mu.Unlock()
	if !more {
		return nil
	}
	return c.Fetch(ctx, true)
}

// OnPullToRefresh restarts the active mode with the current filters. Loading
// flags are cleared afterwards whether or not the fetch succeeded.
func (c *Controller) OnPullToRefresh(ctx context.Context) error {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	gen, err := c.fetch(ctx, false)

	c.mu.Lock()
	if gen == c.gen {
		c.loading = false
		c.loadingMore = false
	}
	c.mu.Unlock()
	return err
}

// SetPosition records the viewer's position and restarts the feed, since
// cursors from another position are meaningless.
func (c *Controller) SetPosition(ctx context.Context, p geo.Point) error {
	c.mu.Lock()
	c.position = &p
	c.permissionDenied = false
	c.resetLocked()
	c.mu.Unlock()
	return c.Fetch(ctx, false)
}

// RequestLocation asks loc for the viewer's position. A denied permission is
// recorded so the UI can offer a retry; it is returned unchanged.
func (c *Controller) RequestLocation(ctx context.Context, loc Locator) error {
	p, err := loc.Locate(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			c.mu.Lock()
			c.permissionDenied = true
			c.mu.Unlock()
			c.log.Info("location permission denied")
		}
		return err
	}
	return c.SetPosition(ctx, p)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Mode:             c.mode,
		Items:            slices.Clone(c.items),
		Cursors:          map[Mode]Cursor{ForYou: c.cursors[ForYou], Following: c.cursors[Following]},
		FirstFetch:       map[Mode]bool{ForYou: c.firstFetch[ForYou], Following: c.firstFetch[Following]},
		Loading:          c.loading,
		LoadingMore:      c.loadingMore,
		RadiusKm:         c.radiusKm,
		Categories:       slices.Clone(c.categories),
		PermissionDenied: c.permissionDenied,
		NoPosts:          c.noPosts,
		Err:              c.err,
	}
	if c.position != nil {
		p := *c.position
		s.Position = &p
	}
	return s
}

// Close stops the empty-feed timer and drops any in-flight responses.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	if c.emptyTimer != nil {
		c.emptyTimer.Stop()
	}
}

// resetLocked clears both cursors, both first-fetch flags and all items, and
// invalidates in-flight fetches.
func (c *Controller) resetLocked() {
	c.gen++
	c.cursors = map[Mode]Cursor{ForYou: "", Following: ""}
	c.firstFetch = map[Mode]bool{ForYou: true, Following: true}
	c.items = nil
	clear(c.seen)
	c.loading = false
	c.loadingMore = false
	c.noPosts = false
	c.err = nil
}

func (c *Controller) armEmptyTimerLocked(gen uint64) {
	if c.emptyTimer != nil {
		c.emptyTimer.Stop()
	}
	if c.noPostsDelay <= 0 || len(c.items) > 0 {
		return
	}
	c.emptyTimer = time.AfterFunc(c.noPostsDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.gen || len(c.items) > 0 {
			return
		}
		c.noPosts = true
		c.publishLocked(bus.KindFeedEmpty, c.mode)
	})
}

func (c *Controller) publishLocked(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Key: c.viewerID, Timestamp: time.Now(), Payload: payload})
}
