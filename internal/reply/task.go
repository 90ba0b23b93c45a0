package reply

import "sync"

type taskState int

const (
	statePending taskState = iota
	stateSettled
	stateAbandoned
)

// lateHandler receives the result of a task whose waiter gave up.
type lateHandler func(text string, err error)

// completionTask is one in-flight completion. Exactly one of two transitions
// leaves the pending state: settle (the completion finished first) or abandon
// (the waiter's deadline passed first). The winner decides whether the result
// is returned to the webhook or handed to the late handler, so each task
// produces exactly one downstream action.
type completionTask struct {
	prompt string
	done   chan struct{}

	mu     sync.Mutex
	state  taskState
	text   string
	err    error
	onLate lateHandler
}

func newCompletionTask(prompt string) *completionTask {
	return &completionTask{
		prompt: prompt,
		done:   make(chan struct{}),
	}
}

// settle records the completion result. When the task was abandoned the late
// handler runs on the calling goroutine.
func (t *completionTask) settle(text string, err error) {
	t.mu.Lock()
	if t.state == stateAbandoned {
		late := t.onLate
		t.onLate = nil
		t.mu.Unlock()
		late(text, err)
		return
	}
	t.state = stateSettled
	t.text, t.err = text, err
	t.mu.Unlock()
	close(t.done)
}

// abandon hands the task to late. If the task already settled, abandon does
// nothing and returns the result with settled=true.
func (t *completionTask) abandon(late lateHandler) (text string, err error, settled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateSettled {
		return t.text, t.err, true
	}
	t.state = stateAbandoned
	t.onLate = late
	return "", nil, false
}

// result must only be called after done is closed.
func (t *completionTask) result() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, t.err
}
