package server

import (
	"context"
	"testing"
	"time"
)

func TestRealtimeDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "user-1")
	defer cleanup()

	dispatcher.Publish(RealtimeMessage{
		UserID:      "user-1",
		EventType:   RealtimeEventReadingProgress,
		BookName:    "Moby Dick",
		CurrentPage: 4,
		TotalPages:  8,
		Progress:    50,
		Timestamp:   time.Now().UTC(),
	})

	select {
	case received := <-stream:
		if received.EventType != RealtimeEventReadingProgress {
			t.Fatalf("expected event type %s, got %s", RealtimeEventReadingProgress, received.EventType)
		}
		if received.BookName != "Moby Dick" || received.CurrentPage != 4 || received.Progress != 50 {
			t.Fatalf("unexpected message: %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message within deadline")
	}
}

func TestRealtimeDispatcherIsolatedByUser(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherCtx, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	userStream, cleanup := dispatcher.Subscribe(ctx, "user-2")
	defer cleanup()

	otherStream, otherCleanup := dispatcher.Subscribe(otherCtx, "user-3")
	defer otherCleanup()

	dispatcher.Publish(RealtimeMessage{
		UserID:      "user-3",
		EventType:   RealtimeEventReadingProgress,
		BookName:    "Emma",
		CurrentPage: 1,
		TotalPages:  3,
		Timestamp:   time.Now().UTC(),
	})

	select {
	case <-userStream:
		t.Fatal("did not expect realtime message for unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case msg := <-otherStream:
		if msg.UserID != "user-3" {
			t.Fatalf("expected user-3, received %s", msg.UserID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected realtime message for subscribed user")
	}
}

func TestRealtimeDispatcherDropsSubscriberOnCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "user-4")
	defer cleanup()
	if count := dispatcher.SubscriberCount("user-4"); count != 1 {
		t.Fatalf("expected one subscriber, got %d", count)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for dispatcher.SubscriberCount("user-4") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRateLimiterThrottlesPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Unix(1700000000, 0)
	limiter.clock = func() time.Time { return now }

	if !limiter.Allow("reader-a") || !limiter.Allow("reader-a") {
		t.Fatal("expected burst requests to pass")
	}
	if limiter.Allow("reader-a") {
		t.Fatal("expected third request within the same instant to be throttled")
	}
	if !limiter.Allow("reader-b") {
		t.Fatal("expected a different reader to have its own bucket")
	}
	now = now.Add(time.Second)
	if !limiter.Allow("reader-a") {
		t.Fatal("expected a token to be replenished after one second")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	for index := 0; index < 100; index++ {
		if !limiter.Allow("reader") {
			t.Fatalf("expected disabled limiter to allow request %d", index)
		}
	}
}
