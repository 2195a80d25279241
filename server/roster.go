package main

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"collabcanvas/presence"
)

// RosterStore counts open sockets per participant and document. A
// participant is listed while at least one of its sockets is open and is
// forgotten when the last one closes.
type RosterStore interface {
	Join(ctx context.Context, doc, participantID string) error
	Leave(ctx context.Context, doc, participantID string) error
	List(ctx context.Context, doc string) ([]presence.Attendee, error)
}

// buildRoster lists participants in join order with their connectivity.
func buildRoster(order []string, sockets map[string]int64) []presence.Attendee {
	out := make([]presence.Attendee, 0, len(order))
	for _, id := range order {
		status := presence.StatusDisconnected
		if sockets[id] > 0 {
			status = presence.StatusConnected
		}
		out = append(out, presence.Attendee{ID: id, Status: status})
	}
	return out
}

func rosterKey(doc string) string      { return "roster:" + doc }
func rosterOrderKey(doc string) string { return "roster-order:" + doc }

// redisRoster keeps socket counts in the hash roster:{doc} and join order in
// the sorted set roster-order:{doc}.
type redisRoster struct {
	rdb *redis.Client
}

func (r *redisRoster) Join(ctx context.Context, doc, participantID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, rosterOrderKey(doc), redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: participantID,
		})
		pipe.HIncrBy(ctx, rosterKey(doc), participantID, 1)
		return nil
	})
	return err
}

// leaveScript decrements the socket count and forgets the participant once
// no sockets remain. It runs atomically so a concurrent Join is never erased.
var leaveScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  redis.call('ZREM', KEYS[2], ARGV[1])
end
return n
`)

func (r *redisRoster) Leave(ctx context.Context, doc, participantID string) error {
	return leaveScript.Run(ctx, r.rdb, []string{rosterKey(doc), rosterOrderKey(doc)}, participantID).Err()
}

func (r *redisRoster) List(ctx context.Context, doc string) ([]presence.Attendee, error) {
	order, err := r.rdb.ZRange(ctx, rosterOrderKey(doc), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return []presence.Attendee{}, nil
	}
	vals, err := r.rdb.HMGet(ctx, rosterKey(doc), order...).Result()
	if err != nil {
		return nil, err
	}
	sockets := make(map[string]int64, len(order))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			sockets[order[i]], _ = strconv.ParseInt(s, 10, 64)
		}
	}
	return buildRoster(order, sockets), nil
}

// memRoster is the single-process RosterStore paired with memBus.
type memRoster struct {
	mu      sync.Mutex
	order   map[string][]string
	sockets map[string]map[string]int64
}

func newMemRoster() *memRoster {
	return &memRoster{
		order:   make(map[string][]string),
		sockets: make(map[string]map[string]int64),
	}
}

func (r *memRoster) Join(_ context.Context, doc, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := r.sockets[doc]
	if counts == nil {
		counts = make(map[string]int64)
		r.sockets[doc] = counts
	}
	if _, seen := counts[participantID]; !seen {
		r.order[doc] = append(r.order[doc], participantID)
	}
	counts[participantID]++
	return nil
}

func (r *memRoster) Leave(_ context.Context, doc, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := r.sockets[doc]
	if counts[participantID] > 1 {
		counts[participantID]--
		return nil
	}
	if _, ok := counts[participantID]; !ok {
		return nil
	}
	delete(counts, participantID)
	r.order[doc] = slices.DeleteFunc(r.order[doc], func(id string) bool { return id == participantID })
	if len(counts) == 0 {
		delete(r.sockets, doc)
		delete(r.order, doc)
	}
	return nil
}

func (r *memRoster) List(_ context.Context, doc string) ([]presence.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return buildRoster(r.order[doc], r.sockets[doc]), nil
}
