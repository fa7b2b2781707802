package session

import (
	"sync"
	"time"
)

const defaultRevealInterval = 32 * time.Millisecond

// typewriter incrementally reveals dialogue text, one rune per
// interval. At most one reveal task is live; starting a new one cancels
// the previous task before any further character is emitted.
type typewriter struct {
	interval time.Duration

	mu   sync.Mutex
	task *revealTask

	onText func(visible string)
	onDone func(text string)
}

type revealTask struct {
	text      []rune
	cursor    int
	cancelled bool
}

func newTypewriter(interval time.Duration) *typewriter {
	if interval <= 0 {
		interval = defaultRevealInterval
	}
	return &typewriter{
		interval: interval,
		onText:   func(string) {},
		onDone:   func(string) {},
	}
}

// SetCallbacks wires the render sinks. Callbacks run while the internal
// lock is held so that emissions of successive tasks never interleave;
// they must not call back into Reveal.
func (w *typewriter) SetCallbacks(onText func(visible string), onDone func(text string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if onText != nil {
		w.onText = onText
	}
	if onDone != nil {
		w.onDone = onDone
	}
}

// Reveal cancels any live task and starts revealing text from scratch.
func (w *typewriter) Reveal(text string) {
	w.mu.Lock()
	if w.task != nil {
		w.task.cancelled = true
	}
	task := &revealTask{text: []rune(text)}
	w.task = task
	w.onText("")
	w.mu.Unlock()

	go w.run(task)
}

// Cancel stops the live task without starting a new one.
func (w *typewriter) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.task != nil {
		w.task.cancelled = true
		w.task = nil
	}
}

func (w *typewriter) run(task *revealTask) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for range ticker.C {
		w.mu.Lock()
		if task.cancelled {
			w.mu.Unlock()
			return
		}

		if task.cursor < len(task.text) {
			task.cursor++
		}
		visible := string(task.text[:task.cursor])
		done := task.cursor == len(task.text)
		w.onText(visible)
		if done {
			task.cancelled = true
			if w.task == task {
				w.task = nil
			}
			w.onDone(visible)
		}
		w.mu.Unlock()

		if done {
			return
		}
	}
}
