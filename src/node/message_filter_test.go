package node

import (
	"testing"
	"time"
)

func TestMessageFilterInsert(t *testing.T) {
	filter := NewMessageFilter(time.Minute, 100)

	if !filter.Insert("a") {
		t.Fatal("first insert should report new")
	}

	if filter.Insert("a") {
		t.Fatal("second insert should report duplicate")
	}

	if !filter.Contains("a") {
		t.Fatal("the filter should remember the identifier")
	}

	if filter.Len() != 1 {
		t.Fatalf("Len should be 1, not %d", filter.Len())
	}
}

func TestMessageFilterWindow(t *testing.T) {
	filter := NewMessageFilter(time.Minute, 100)

	clock := time.Now()
	filter.now = func() time.Time { return clock }

	filter.Insert("a")

	clock = clock.Add(30 * time.Second)
	if filter.Insert("a") {
		t.Fatal("the identifier should still be remembered within the window")
	}

	clock = clock.Add(31 * time.Second)
	if !filter.Insert("a") {
		t.Fatal("the identifier should be forgotten after the window")
	}

	if filter.Len() != 1 {
		t.Fatalf("the expired entry should have been swept, Len is %d", filter.Len())
	}
}

func TestMessageFilterCapacity(t *testing.T) {
	filter := NewMessageFilter(time.Minute, 3)

	filter.Insert("a")
	filter.Insert("b")
	filter.Insert("c")
	filter.Insert("d")

	if filter.Len() != 3 {
		t.Fatalf("the filter should hold at most 3 entries, got %d", filter.Len())
	}

	if filter.Contains("a") {
		t.Fatal("the oldest entry should have been evicted")
	}

	if !filter.Contains("d") {
		t.Fatal("the newest entry should be remembered")
	}
}
