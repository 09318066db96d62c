// Package feed keeps a room view in step with the backend by polling.
//
// The message poller only inspects the id of the last message in each
// response. The backend contract is that get_messages returns a stable,
// append-only order with the newest message last; messages inserted anywhere
// else are not detected until the tail changes.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/rs/zerolog"
)

const (
	DefaultMessageInterval = 5 * time.Second
	DefaultOnlineInterval  = 10 * time.Second
)

type MessageSource interface {
	GetMessages(ctx context.Context, roomId, anonymousId string) ([]types.Message, error)
}

type OnlineSource interface {
	GetOnlineUsers(ctx context.Context, roomId string) (int, error)
}

// Renderer receives the complete message list whenever it changed.
type Renderer interface {
	Render(msgs []types.Message)
}

type RenderFunc func(msgs []types.Message)

func (f RenderFunc) Render(msgs []types.Message) {
	f(msgs)
}

// guard admits one holder at a time. Callers that fail to acquire it drop
// their work instead of waiting.
type guard struct {
	busy atomic.Bool
}

func (g *guard) tryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *guard) release() {
	g.busy.Store(false)
}

func (g *guard) held() bool {
	return g.busy.Load()
}

type markState int

const (
	markUnknown markState = iota
	// markEmpty records that an empty room has been rendered once.
	markEmpty
	markSeen
)

type MessagePoller struct {
	src         MessageSource
	out         Renderer
	roomId      string
	anonymousId string
	log         zerolog.Logger

	flight guard
	kick   chan struct{}

	mu    sync.Mutex
	state markState
	mark  string
}

func NewMessagePoller(src MessageSource, out Renderer, roomId, anonymousId string, logger zerolog.Logger) *MessagePoller {
	return &MessagePoller{
		src:         src,
		out:         out,
		roomId:      roomId,
		anonymousId: anonymousId,
		log:         logger.With().Str("component", "message_poller").Str("room_id", roomId).Logger(),
		kick:        make(chan struct{}, 1),
	}
}

// Poll fetches the room's messages once and renders them if the tail id
// moved. It returns false without fetching when another poll is in flight.
// Fetch errors are logged and otherwise ignored; the next tick retries.
func (p *MessagePoller) Poll(ctx context.Context) bool {
	if !p.flight.tryAcquire() {
		return false
	}
	defer p.flight.release()

	msgs, err := p.src.GetMessages(ctx, p.roomId, p.anonymousId)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error().Err(err).Msg("load messages")
		}
		return false
	}

	if !p.advance(msgs) {
		return false
	}

	p.out.Render(msgs)
	return true
}

// advance applies the change-detection rule and records the new mark.
func (p *MessagePoller) advance(msgs []types.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(msgs) == 0 {
		if p.state != markUnknown {
			return false
		}
		p.state = markEmpty
		return true
	}

	last := msgs[len(msgs)-1].Id
	if p.state == markSeen && p.mark == last {
		return false
	}

	p.state = markSeen
	p.mark = last
	return true
}

// Invalidate forgets the high-water mark so the next poll renders
// unconditionally, and asks a running poller to tick now.
func (p *MessagePoller) Invalidate() {
	p.mu.Lock()
	p.state = markUnknown
	p.mark = ""
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Mark returns the id of the last rendered tail message, if any.
func (p *MessagePoller) Mark() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mark, p.state == markSeen
}

// InFlight reports whether a fetch is outstanding.
func (p *MessagePoller) InFlight() bool {
	return p.flight.held()
}

// Run polls immediately and then every interval until ctx is done. Each tick
// runs in its own goroutine so a slow fetch never delays the schedule; ticks
// that find a fetch in flight are dropped.
func (p *MessagePoller) Run(ctx context.Context, interval time.Duration) {
	every(ctx, interval, p.kick, func(ctx context.Context) {
		p.Poll(ctx)
	})
}

// OnlinePoller refreshes the online-user count of a room on its own schedule
// and with its own in-flight guard.
type OnlinePoller struct {
	src    OnlineSource
	out    func(count int)
	roomId string
	log    zerolog.Logger

	flight guard
}

func NewOnlinePoller(src OnlineSource, out func(count int), roomId string, logger zerolog.Logger) *OnlinePoller {
	return &OnlinePoller{
		src:    src,
		out:    out,
		roomId: roomId,
		log:    logger.With().Str("component", "online_poller").Str("room_id", roomId).Logger(),
	}
}

func (p *OnlinePoller) Poll(ctx context.Context) bool {
	if !p.flight.tryAcquire() {
		return false
	}
	defer p.flight.release()

	count, err := p.src.GetOnlineUsers(ctx, p.roomId)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error().Err(err).Msg("load online count")
		}
		return false
	}

	p.out(count)
	return true
}

func (p *OnlinePoller) Run(ctx context.Context, interval time.Duration) {
	every(ctx, interval, nil, func(ctx context.Context) {
		p.Poll(ctx)
	})
}

// every calls fn right away and then on each tick or kick, each call in a
// fresh goroutine. It returns once ctx is done and all calls have finished.
func every(ctx context.Context, interval time.Duration, kick <-chan struct{}, fn func(context.Context)) {
	var wg sync.WaitGroup
	defer wg.Wait()

	fire := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fire()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		case <-kick:
			fire()
		}
	}
}
