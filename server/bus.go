package main

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus fans relay messages out to every subscriber of a document, across
// relay instances.
type Bus interface {
	Publish(ctx context.Context, doc string, msg []byte) error
	Subscribe(ctx context.Context, doc string) (Subscription, error)
}

// Subscription delivers a document's messages until closed. Close is safe
// to call more than once.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

func presenceKey(doc string) string { return "presence:" + doc }

type redisBus struct {
	rdb *redis.Client
}

func (b *redisBus) Publish(ctx context.Context, doc string, msg []byte) error {
	return b.rdb.Publish(ctx, presenceKey(doc), msg).Err()
}

// Subscribe waits for Redis to confirm the subscription so that nothing
// published after it returns is missed.
func (b *redisBus) Subscribe(ctx context.Context, doc string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, presenceKey(doc))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}
	s := &redisSubscription{ps: ps, out: make(chan []byte, 64), done: make(chan struct{})}
	go s.run()
	return s, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) run() {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// memBus is a single-process Bus used when no Redis address is configured.
// Like the Redis path, a full subscriber holds up the publisher instead of
// losing messages. Publish gives up when its context ends.
type memBus struct {
	mu   sync.Mutex
	subs map[string]map[*memSubscription]struct{}
}

func newMemBus() *memBus {
	return &memBus{subs: make(map[string]map[*memSubscription]struct{})}
}

func (b *memBus) Publish(ctx context.Context, doc string, msg []byte) error {
	b.mu.Lock()
	targets := make([]*memSubscription, 0, len(b.subs[doc]))
	for s := range b.subs[doc] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.in <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, doc string) (Subscription, error) {
	s := &memSubscription{
		bus:  b,
		doc:  doc,
		in:   make(chan []byte, 64),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	if b.subs[doc] == nil {
		b.subs[doc] = make(map[*memSubscription]struct{})
	}
	b.subs[doc][s] = struct{}{}
	b.mu.Unlock()
	go s.run()
	return s, nil
}

// memSubscription never closes in, so publishers racing Close cannot panic.
type memSubscription struct {
	bus  *memBus
	doc  string
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *memSubscription) run() {
	defer close(s.out)
	for {
		select {
		case m := <-s.in:
			select {
			case s.out <- m:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *memSubscription) Messages() <-chan []byte { return s.out }

func (s *memSubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.doc], s)
		if len(s.bus.subs[s.doc]) == 0 {
			delete(s.bus.subs, s.doc)
		}
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}
