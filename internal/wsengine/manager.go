package wsengine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/perpx/unified/internal/ratelimit"
	"github.com/perpx/unified/pkg/unified"
)

const defaultQueueSize = 1024

// RouteKeyFunc extracts the channel key a raw inbound message belongs to.
// ok=false means the message doesn't carry a recognizable key and is
// dropped silently (logged at debug level), per spec.md §4.4.
type RouteKeyFunc func(raw []byte) (channelKey string, ok bool)

type subscriberQueue struct {
	ch   chan []byte
	drop atomic.Int64

	channelKey string
	logger     *slog.Logger
	// overflowLog throttles the "queue overflowing" warning to at most once
	// every five seconds per subscriber, independent of how many messages
	// actually overflow in that window.
	overflowLog *ratelimit.TokenBucket
}

// send delivers msg, dropping the oldest queued message on overflow rather
// than blocking the dispatch goroutine.
func (q *subscriberQueue) send(msg []byte) {
	select {
	case q.ch <- msg:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- msg:
	default:
	}
	q.drop.Add(1)
	if q.overflowLog.TryTake() {
		q.logger.Warn("subscriber queue overflowing, dropping oldest message", "channel", q.channelKey, "total_dropped", q.drop.Load())
	}
}

type subscription struct {
	channelKey         string
	subscribePayload   []byte
	unsubscribePayload []byte

	nextSubscriberID int
	subscribers      map[int]*subscriberQueue
}

// Manager multiplexes one wsengine.Client into many channel-keyed logical
// subscriptions. It is the generalized form of the teacher's Hub: instead
// of broadcasting every message to every registered client, it routes each
// message to the subscribers of the one channel key it belongs to, and
// each logical subscription has its own refcount and bounded queue.
type Manager struct {
	client    *Client
	routeKey  RouteKeyFunc
	queueSize int
	logger    *slog.Logger

	mu    sync.Mutex
	subs  map[string]*subscription
	order []string // insertion order, for resubscribe-on-reconnect
}

// NewManager constructs a Manager and the Client it owns. clientCfg.OnMessage
// and clientCfg.OnReconnect are overwritten to route through the manager;
// callers should not set them.
func NewManager(clientCfg Config, routeKey RouteKeyFunc, queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	m := &Manager{
		routeKey:  routeKey,
		queueSize: queueSize,
		subs:      make(map[string]*subscription),
	}

	clientCfg.OnMessage = m.dispatch
	userReconnect := clientCfg.OnReconnect
	clientCfg.OnReconnect = func() {
		m.resubscribeAll()
		if userReconnect != nil {
			userReconnect()
		}
	}

	m.client = New(clientCfg)
	m.logger = m.client.logger
	return m
}

// Connect starts the underlying Client.
func (m *Manager) Connect(ctx context.Context) error {
	return m.client.Connect(ctx)
}

// Disconnect stops the underlying Client and abandons all subscriptions
// without sending unsubscribe payloads — the socket is already going away.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.subs = make(map[string]*subscription)
	m.order = nil
	m.mu.Unlock()
	return m.client.Disconnect()
}

// State proxies the underlying Client's lifecycle state.
func (m *Manager) State() State {
	return m.client.State()
}

// Metrics proxies the underlying Client's counters.
func (m *Manager) Metrics() Metrics {
	return m.client.SnapshotMetrics()
}

// Watch implements the watch<T> contract from spec.md §4.4 at the []byte
// level; each venue adapter's Watch* method decodes each message into a
// unified record. The returned channel is owned by the caller until ctx is
// canceled, at which point the manager decrements the channel's refcount
// and, if it reaches zero, sends the unsubscribe payload exactly once.
func (m *Manager) Watch(ctx context.Context, sub unified.Subscription) (<-chan []byte, error) {
	m.mu.Lock()
	s, exists := m.subs[sub.ChannelKey]
	if !exists {
		s = &subscription{
			channelKey:         sub.ChannelKey,
			subscribePayload:   sub.SubscribePayload,
			unsubscribePayload: sub.UnsubscribePayload,
			subscribers:        make(map[int]*subscriberQueue),
		}
		m.subs[sub.ChannelKey] = s
		m.order = append(m.order, sub.ChannelKey)
	}

	id := s.nextSubscriberID
	s.nextSubscriberID++
	q := &subscriberQueue{
		ch:          make(chan []byte, m.queueSize),
		channelKey:  sub.ChannelKey,
		logger:      m.logger,
		overflowLog: ratelimit.NewTokenBucket(1, 0.2),
	}
	s.subscribers[id] = q
	m.mu.Unlock()

	if !exists {
		if err := m.client.Send(sub.SubscribePayload); err != nil {
			m.release(sub.ChannelKey, id)
			return nil, err
		}
	}

	go func() {
		<-ctx.Done()
		m.release(sub.ChannelKey, id)
	}()

	return q.ch, nil
}

// release decrements the refcount for (channelKey, subscriberID); when it
// reaches zero the channel key is removed from the routing table and its
// unsubscribe payload (if any) is sent exactly once.
func (m *Manager) release(channelKey string, subscriberID int) {
	m.mu.Lock()
	s, ok := m.subs[channelKey]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(s.subscribers, subscriberID)

	var unsub []byte
	removed := false
	if len(s.subscribers) == 0 {
		delete(m.subs, channelKey)
		for i, k := range m.order {
			if k == channelKey {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		unsub = s.unsubscribePayload
		removed = true
	}
	m.mu.Unlock()

	if removed && unsub != nil {
		if err := m.client.Send(unsub); err != nil {
			m.logger.Warn("failed to send unsubscribe payload", "channel", channelKey, "error", err)
		}
	}
}

// dispatch routes one inbound message per spec.md §4.3/§4.4: a message that
// doesn't even parse as JSON is broadcast to every live subscriber verbatim
// (the raw-string fallback — venues send non-JSON heartbeat/status frames
// on subscribed channels, and a consumer should see those rather than
// silence). A message that does parse as JSON but carries no key the
// adapter's RouteKeyFunc recognizes is dropped silently at debug level,
// per §4.4 ("messages with no matching key are dropped silently") — that
// case is a structured frame for a channel nobody asked for, not a
// transport-level anomaly.
func (m *Manager) dispatch(raw []byte) {
	if !isJSON(raw) {
		m.broadcastRaw(raw)
		return
	}

	key, ok := m.routeKey(raw)
	if !ok {
		m.logger.Debug("dropping message with no routing key")
		return
	}

	m.mu.Lock()
	s, ok := m.subs[key]
	var queues []*subscriberQueue
	if ok {
		queues = make([]*subscriberQueue, 0, len(s.subscribers))
		for _, q := range s.subscribers {
			queues = append(queues, q)
		}
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("dropping message for unknown channel", "channel", key)
		return
	}
	for _, q := range queues {
		q.send(raw)
	}
}

// broadcastRaw delivers a non-JSON frame to every currently active
// subscriber queue, across every channel — there is no routing key to
// narrow delivery to, and spec.md §4.3 requires the raw string reach
// consumers rather than being dropped.
func (m *Manager) broadcastRaw(raw []byte) {
	m.mu.Lock()
	queues := make([]*subscriberQueue, 0)
	for _, s := range m.subs {
		for _, q := range s.subscribers {
			queues = append(queues, q)
		}
	}
	m.mu.Unlock()

	for _, q := range queues {
		q.send(raw)
	}
}

// resubscribeAll resends every currently-registered subscribe payload in
// insertion order after a reconnect, per spec.md §4.4.
func (m *Manager) resubscribeAll() {
	m.mu.Lock()
	payloads := make([][]byte, 0, len(m.order))
	for _, key := range m.order {
		if s, ok := m.subs[key]; ok {
			payloads = append(payloads, s.subscribePayload)
		}
	}
	m.mu.Unlock()

	for _, p := range payloads {
		if err := m.client.Send(p); err != nil {
			m.logger.Warn("resubscribe send failed", "error", err)
		}
	}
}

// DropCount reports how many messages have been dropped for a channel's
// queue due to backpressure overflow, summed across its subscribers.
func (m *Manager) DropCount(channelKey string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[channelKey]
	if !ok {
		return 0
	}
	var total int64
	for _, q := range s.subscribers {
		total += q.drop.Load()
	}
	return total
}
