// Package presence counts the distinct anonymous users recently seen in each
// room. All state is owned by the Run loop; callers talk to it over channels.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/npezzotti/anon-chat/internal/stats"
	"github.com/rs/zerolog"
)

const MetricOnlineUsers = "OnlineUsers"

var ErrStopped = errors.New("presence tracker stopped")

type seenReq struct {
	roomId      string
	anonymousId string
}

type countReq struct {
	roomId string
	resp   chan int
}

type stopReq struct {
	done chan struct{}
}

type Tracker struct {
	log    zerolog.Logger
	stats  stats.StatsProvider
	window time.Duration
	now    func() time.Time

	seenChan   chan seenReq
	countChan  chan countReq
	forgetChan chan string
	stop       chan stopReq
	done       chan struct{}

	// rooms maps room id to anonymous id to last seen time.
	rooms map[string]map[string]time.Time
}

func NewTracker(logger zerolog.Logger, su stats.StatsProvider, window time.Duration) *Tracker {
	su.RegisterMetric(MetricOnlineUsers)

	return &Tracker{
		log:        logger.With().Str("component", "presence").Logger(),
		stats:      su,
		window:     window,
		now:        time.Now,
		seenChan:   make(chan seenReq, 256),
		countChan:  make(chan countReq),
		forgetChan: make(chan string),
		stop:       make(chan stopReq),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[string]time.Time),
	}
}

func (t *Tracker) Run() {
	defer close(t.done)

	ticker := time.NewTicker(t.window)
	defer ticker.Stop()

	for {
		select {
		case req := <-t.seenChan:
			t.markSeen(req)
		case req := <-t.countChan:
			t.drainSeen()
			t.prune(req.roomId)
			req.resp <- len(t.rooms[req.roomId])
		case roomId := <-t.forgetChan:
			for range t.rooms[roomId] {
				t.stats.Decr(MetricOnlineUsers)
			}
			delete(t.rooms, roomId)
		case <-ticker.C:
			for roomId := range t.rooms {
				t.prune(roomId)
			}
		case req := <-t.stop:
			t.log.Info().Int("rooms", len(t.rooms)).Msg("stopping presence tracker")
			close(req.done)
			return
		}
	}
}

func (t *Tracker) markSeen(req seenReq) {
	users, ok := t.rooms[req.roomId]
	if !ok {
		users = make(map[string]time.Time)
		t.rooms[req.roomId] = users
	}
	if _, ok := users[req.anonymousId]; !ok {
		t.stats.Incr(MetricOnlineUsers)
	}
	users[req.anonymousId] = t.now()
}

// drainSeen applies queued sightings so a count never lags a Seen call that
// returned before it.
func (t *Tracker) drainSeen() {
	for {
		select {
		case req := <-t.seenChan:
			t.markSeen(req)
		default:
			return
		}
	}
}

func (t *Tracker) prune(roomId string) {
	users, ok := t.rooms[roomId]
	if !ok {
		return
	}

	cutoff := t.now().Add(-t.window)
	for id, seen := range users {
		if seen.Before(cutoff) {
			delete(users, id)
			t.stats.Decr(MetricOnlineUsers)
		}
	}
	if len(users) == 0 {
		delete(t.rooms, roomId)
	}
}

// Seen records anonymousId as present in roomId now. Empty ids are ignored.
func (t *Tracker) Seen(ctx context.Context, roomId, anonymousId string) error {
	if anonymousId == "" {
		return nil
	}

	select {
	case t.seenChan <- seenReq{roomId: roomId, anonymousId: anonymousId}:
		return nil
	case <-t.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of users seen in roomId within the window.
func (t *Tracker) Count(ctx context.Context, roomId string) (int, error) {
	req := countReq{roomId: roomId, resp: make(chan int, 1)}

	select {
	case t.countChan <- req:
	case <-t.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	return <-req.resp, nil
}

// Forget drops all presence for roomId, e.g. after the room is deleted.
func (t *Tracker) Forget(ctx context.Context, roomId string) error {
	select {
	case t.forgetChan <- roomId:
		return nil
	case <-t.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case t.stop <- req:
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
