// Package thread tracks the live set of debuggee threads: which are
// running, which are stopped, which one has console focus, and which
// stack frame is selected within the focus thread.
package thread

import "sort"

// Thread mirrors spec.md §3: { id, name, running, selectedFrame }.
// selectedFrame is 0-based into a frame list fetched on demand and is
// cleared to 0 on every stop.
type Thread struct {
	ID            int64
	Name          string
	Running       bool
	SelectedFrame uint32
}

// NoSuchThread is returned when an id does not name a live thread.
type NoSuchThread struct {
	ID int64
}

func (e *NoSuchThread) Error() string {
	return "no such thread"
}

// Collection is the ThreadCollection of spec.md §4.2.
type Collection struct {
	threads map[int64]*Thread
	focus   *int64
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{threads: map[int64]*Thread{}}
}

// UpdateThreads reconciles against the adapter's full thread list: threads
// not present in newList are dropped. Focus is preserved if the focus
// thread still exists.
func (c *Collection) UpdateThreads(newList []Thread) {
	fresh := map[int64]*Thread{}
	for i := range newList {
		t := newList[i]
		if existing, ok := c.threads[t.ID]; ok {
			// Preserve local running/selected-frame state for threads the
			// adapter still reports; newList only carries id/name.
			t.Running = existing.Running
			t.SelectedFrame = existing.SelectedFrame
		}
		tCopy := t
		fresh[t.ID] = &tCopy
	}
	c.threads = fresh
	if c.focus != nil {
		if _, ok := c.threads[*c.focus]; !ok {
			c.focus = nil
		}
	}
}

// AddThread adds or replaces a single thread.
func (c *Collection) AddThread(t Thread) {
	c.threads[t.ID] = &t
}

// RemoveThread drops a thread, clearing focus if it pointed at it.
func (c *Collection) RemoveThread(id int64) {
	delete(c.threads, id)
	if c.focus != nil && *c.focus == id {
		c.focus = nil
	}
}

func (c *Collection) get(id int64) (*Thread, error) {
	t, ok := c.threads[id]
	if !ok {
		return nil, &NoSuchThread{ID: id}
	}
	return t, nil
}

// MarkThreadRunning marks a single thread as running.
func (c *Collection) MarkThreadRunning(id int64) error {
	t, err := c.get(id)
	if err != nil {
		return err
	}
	t.Running = true
	return nil
}

// MarkThreadStopped marks a single thread as stopped and clears its
// selected frame.
func (c *Collection) MarkThreadStopped(id int64) error {
	t, err := c.get(id)
	if err != nil {
		return err
	}
	t.Running = false
	t.SelectedFrame = 0
	return nil
}

// MarkAllThreadsRunning marks every known thread as running.
func (c *Collection) MarkAllThreadsRunning() {
	for _, t := range c.threads {
		t.Running = true
	}
}

// MarkAllThreadsStopped marks every known thread as stopped and clears
// every selected frame, per the invariant in spec.md §3.
func (c *Collection) MarkAllThreadsStopped() {
	for _, t := range c.threads {
		t.Running = false
		t.SelectedFrame = 0
	}
}

// SetFocusThread sets the focus thread; the thread must already exist.
func (c *Collection) SetFocusThread(id int64) error {
	if _, err := c.get(id); err != nil {
		return err
	}
	idCopy := id
	c.focus = &idCopy
	return nil
}

// FocusThread returns the current focus thread id, if any.
func (c *Collection) FocusThread() (int64, bool) {
	if c.focus == nil {
		return 0, false
	}
	return *c.focus, true
}

// SetSelectedFrame sets the 0-based selected frame for a thread.
func (c *Collection) SetSelectedFrame(id int64, frame uint32) error {
	t, err := c.get(id)
	if err != nil {
		return err
	}
	t.SelectedFrame = frame
	return nil
}

// Get returns a copy of the named thread.
func (c *Collection) Get(id int64) (Thread, error) {
	t, err := c.get(id)
	if err != nil {
		return Thread{}, err
	}
	return *t, nil
}

// FirstStoppedThread returns the lowest-id stopped thread, deterministic by
// ascending thread id.
func (c *Collection) FirstStoppedThread() (Thread, bool) {
	ids := make([]int64, 0, len(c.threads))
	for id := range c.threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := c.threads[id]
		if !t.Running {
			return *t, true
		}
	}
	return Thread{}, false
}

// AllThreadsRunning reports whether every known thread has running == true.
func (c *Collection) AllThreadsRunning() bool {
	for _, t := range c.threads {
		if !t.Running {
			return false
		}
	}
	return true
}

// AllThreadsStopped reports whether every known thread has running == false.
func (c *Collection) AllThreadsStopped() bool {
	for _, t := range c.threads {
		if t.Running {
			return false
		}
	}
	return true
}

// All returns every thread, ascending by id.
func (c *Collection) All() []Thread {
	ids := make([]int64, 0, len(c.threads))
	for id := range c.threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.threads[id])
	}
	return out
}
