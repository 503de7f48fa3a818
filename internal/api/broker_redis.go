package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetplan/internal/session"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that a session's
// events reach stream subscribers on every API instance.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger

	mu   sync.Mutex
	subs map[chan session.Event]*redis.PubSub
}

func NewRedisBroker(url, prefix string, log *zap.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{
		rdb:    redis.NewClient(opt),
		prefix: prefix,
		log:    log,
		subs:   map[chan session.Event]*redis.PubSub{},
	}, nil
}

// Ping checks connectivity; used by the readiness probe.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Subscribe(sessionID string) chan session.Event {
	ch := make(chan session.Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(sessionID))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", zap.String("session", sessionID), zap.Error(err))
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt session.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; ch is closed once its reader
// goroutine drains.
func (b *RedisBroker) Unsubscribe(_ string, ch chan session.Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(sessionID string, evt session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(sessionID), data).Err(); err != nil {
		b.log.Warn("redis publish failed", zap.String("session", sessionID), zap.Error(err))
	}
}

// Close releases the client.
func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(sessionID string) string { return b.prefix + ":" + sessionID }
