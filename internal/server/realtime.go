package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventReadingProgress = "reading-progress"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeSourceBackend        = "companion-api"
	defaultRealtimeBuffer        = 16
)

// RealtimeMessage announces a position change to the reader's open streams.
type RealtimeMessage struct {
	UserID      string
	EventType   string
	BookName    string
	CurrentPage int
	TotalPages  int
	Progress    int
	ClientID    string
	Timestamp   time.Time
}

// RealtimeDispatcher fans messages out to per-reader subscriber channels.
// Slow subscribers drop messages instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]chan RealtimeMessage
	nextID      int64
	bufferSize  int
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]chan RealtimeMessage),
		bufferSize:  defaultRealtimeBuffer,
	}
}

// Subscribe registers a stream for userID that lives until ctx ends or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RealtimeMessage, func()) {
	if userID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}

	stream := make(chan RealtimeMessage, d.bufferSize)
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	if d.subscribers[userID] == nil {
		d.subscribers[userID] = make(map[int64]chan RealtimeMessage)
	}
	d.subscribers[userID][id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unsubscribe(userID, id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers message to every stream of message.UserID.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.UserID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, stream := range d.subscribers[message.UserID] {
		select {
		case stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the open streams of userID.
func (d *RealtimeDispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *RealtimeDispatcher) unsubscribe(userID string, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	streams := d.subscribers[userID]
	if streams == nil {
		return
	}
	delete(streams, id)
	if len(streams) == 0 {
		delete(d.subscribers, userID)
	}
}
