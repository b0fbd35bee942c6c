package bridge

import "testing"

func TestHubDropsOldestForSlowSubscribers(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe()
	defer sub.Close()
	for i := 0; i < 5; i++ {
		hub.Publish(Update{Action: "reset"})
	}
	first := <-sub.Updates
	second := <-sub.Updates
	if first.Sequence != 4 || second.Sequence != 5 {
		t.Fatalf("expected the two newest updates, got %d and %d", first.Sequence, second.Sequence)
	}
}

func TestHubReplaysLastUpdate(t *testing.T) {
	hub := NewHub(0)
	hub.Publish(Update{Action: "tab"})
	sub := hub.Subscribe()
	got := <-sub.Updates
	if got.Action != "tab" || got.Sequence != 1 {
		t.Fatalf("unexpected replay %+v", got)
	}
	sub.Close()
	sub.Close()
	if _, ok := <-sub.Updates; ok {
		t.Fatalf("closed subscription must close its channel")
	}
	hub.Publish(Update{Action: "proceed"})
}
