package session

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func collectReveals(w *typewriter) (*sync.Mutex, *[]string, chan string) {
	mu := &sync.Mutex{}
	emitted := &[]string{}
	done := make(chan string, 4)

	w.SetCallbacks(
		func(visible string) {
			mu.Lock()
			*emitted = append(*emitted, visible)
			mu.Unlock()
		},
		func(text string) { done <- text },
	)

	return mu, emitted, done
}

func TestTypewriterRevealsIncrementally(t *testing.T) {
	w := newTypewriter(time.Millisecond)
	mu, emitted, done := collectReveals(w)

	w.Reveal("你好吗")

	select {
	case text := <-done:
		if text != "你好吗" {
			t.Fatalf("expected completed text %q, got %q", "你好吗", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reveal to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"", "你", "你好", "你好吗"}
	if len(*emitted) != len(want) {
		t.Fatalf("expected %d emissions, got %d (%v)", len(want), len(*emitted), *emitted)
	}
	for i, visible := range want {
		if (*emitted)[i] != visible {
			t.Fatalf("emission %d: expected %q, got %q", i, visible, (*emitted)[i])
		}
	}
}

func TestTypewriterNewRevealCancelsPrevious(t *testing.T) {
	w := newTypewriter(5 * time.Millisecond)
	mu, emitted, done := collectReveals(w)

	w.Reveal("first line that takes a while to finish")
	time.Sleep(12 * time.Millisecond)
	w.Reveal("second")

	select {
	case text := <-done:
		if text != "second" {
			t.Fatalf("expected %q to complete, got %q", "second", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for second reveal")
	}

	// No character of the first line may appear after the second reveal
	// cleared the display.
	mu.Lock()
	defer mu.Unlock()
	cleared := false
	for i, visible := range *emitted {
		if i > 0 && visible == "" {
			cleared = true
			continue
		}
		if cleared && strings.HasPrefix(visible, "f") {
			t.Fatalf("stale emission %q after new reveal started", visible)
		}
	}
	if !cleared {
		t.Fatalf("expected the second reveal to clear the display first")
	}
}

func TestTypewriterCancelStopsEmissions(t *testing.T) {
	w := newTypewriter(2 * time.Millisecond)
	mu, emitted, _ := collectReveals(w)

	w.Reveal("some dialogue")
	time.Sleep(7 * time.Millisecond)
	w.Cancel()

	mu.Lock()
	count := len(*emitted)
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(*emitted) != count {
		t.Fatalf("expected no emissions after cancel, got %d more", len(*emitted)-count)
	}
}

func TestTypewriterEmptyTextCompletesImmediately(t *testing.T) {
	w := newTypewriter(time.Millisecond)
	_, _, done := collectReveals(w)

	w.Reveal("")

	select {
	case text := <-done:
		if text != "" {
			t.Fatalf("expected empty completion, got %q", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for empty reveal to complete")
	}
}
