package rules

import (
	"testing"
	"time"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	playedCount := 0
	wonCount := 0

	handle1 := bus.SubscribeTyped(EventCardPlayed, func(e Event) {
		playedCount++
	})
	handle2 := bus.SubscribeTyped(EventGameWon, func(e Event) {
		wonCount++
	})

	bus.Publish(NewCardEvent(EventCardPlayed, "player1", "card1"))
	if playedCount != 1 {
		t.Fatalf("expected played count 1, got %d", playedCount)
	}
	if wonCount != 0 {
		t.Fatalf("expected won count 0, got %d", wonCount)
	}

	bus.Publish(NewEvent(EventGameWon, "player1"))
	if wonCount != 1 {
		t.Fatalf("expected won count 1, got %d", wonCount)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewCardEvent(EventCardPlayed, "player1", "card2"))
	if playedCount != 1 {
		t.Fatalf("expected played count still 1 after unsubscribe, got %d", playedCount)
	}

	bus.Unsubscribe(handle2)
	bus.Publish(NewEvent(EventGameWon, "player1"))
	if wonCount != 1 {
		t.Fatalf("expected won count still 1 after unsubscribe, got %d", wonCount)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	count := 0
	handle := bus.Subscribe(func(e Event) {
		count++
	})

	bus.Publish(NewCardEvent(EventCardPlayed, "player1", "card1"))
	bus.Publish(NewEventWithAmount(EventTurnAdvanced, "player2", 2))
	bus.Publish(NewEvent(EventPlayerJoined, "player3"))

	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventPlayerLeft, "player3"))
	if count != 3 {
		t.Fatalf("expected count still 3 after unsubscribe, got %d", count)
	}
}

func TestEventBusIgnoresNilListeners(t *testing.T) {
	bus := NewEventBus()
	if h := bus.Subscribe(nil); h != -1 {
		t.Fatalf("expected handle -1 for nil listener, got %d", h)
	}
	if h := bus.SubscribeTyped(EventGameWon, nil); h != -1 {
		t.Fatalf("expected handle -1 for nil typed listener, got %d", h)
	}
}

func TestCardEventTargets(t *testing.T) {
	evt := NewCardEvent(EventCardPlayed, "player1", "card1", "module1", "module2")
	if evt.TargetID != "module1" {
		t.Fatalf("expected first target module1, got %s", evt.TargetID)
	}
	if len(evt.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(evt.Targets))
	}
}

func TestEventTimestamp(t *testing.T) {
	before := time.Now()
	evt := NewEvent(EventGameStarted, "player1")
	after := time.Now()

	if evt.Timestamp.Before(before) || evt.Timestamp.After(after) {
		t.Fatal("event timestamp should be between before and after")
	}
}
