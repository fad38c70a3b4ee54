package orchestrator

import "sync"

// activeRuns tracks the cancel function of every in-flight run so the
// API layer can abort by session or by chat.
type activeRuns struct {
	mu   sync.Mutex
	runs map[string]runEntry
}

type runEntry struct {
	chatID string
	cancel func()
}

func newActiveRuns() *activeRuns {
	return &activeRuns{runs: make(map[string]runEntry)}
}

func (a *activeRuns) register(sessionID, chatID string, cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs[sessionID] = runEntry{chatID: chatID, cancel: cancel}
}

func (a *activeRuns) unregister(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runs, sessionID)
}

// cancel signals one run. The entry stays registered until the run
// goroutine exits on its own.
func (a *activeRuns) cancel(sessionID string) bool {
	a.mu.Lock()
	entry, ok := a.runs[sessionID]
	a.mu.Unlock()
	if ok {
		entry.cancel()
	}
	return ok
}

// cancelChat signals every run belonging to the chat. Cancel functions
// run outside the lock; they may trigger unregister calls.
func (a *activeRuns) cancelChat(chatID string) int {
	a.mu.Lock()
	var cancels []func()
	for _, entry := range a.runs {
		if entry.chatID == chatID {
			cancels = append(cancels, entry.cancel)
		}
	}
	a.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return len(cancels)
}

func (a *activeRuns) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runs)
}
