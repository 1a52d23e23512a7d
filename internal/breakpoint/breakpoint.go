// Package breakpoint holds the user-visible set of source- and
// function-breakpoints the console has declared, independent of whatever the
// adapter has (or hasn't) confirmed about them.
package breakpoint

import "fmt"

// Kind distinguishes a source breakpoint (file:line) from a function
// breakpoint (symbol name).
type Kind int

const (
	Source Kind = iota
	Function
)

// unresolvedMessage is substituted whenever an enabled source breakpoint has
// no adapter confirmation and the adapter did not supply its own message.
const unresolvedMessage = "Could not set this breakpoint. The module may not have been loaded yet."

// Breakpoint is the sum type from spec.md §3: a SourceBreakpoint when Kind ==
// Source, a FunctionBreakpoint when Kind == Function. Both variants are
// represented by one struct to keep BreakpointCollection's storage and
// id/index indices uniform; fields meaningless for a given Kind are left
// zero-valued.
type Breakpoint struct {
	Index    uint32
	Kind     Kind
	Enabled  bool
	ID       *int
	Verified bool
	Message  string

	// Source fields.
	Path string
	Line uint32

	// Function fields.
	Func         string
	ResolvedPath string
	ResolvedLine uint32
}

// NoSuchBreakpoint is returned when an index or adapter id does not name a
// live breakpoint.
type NoSuchBreakpoint struct {
	Index *uint32
	ID    *int
}

func (e *NoSuchBreakpoint) Error() string {
	if e.Index != nil {
		return fmt.Sprintf("no such breakpoint: index %d", *e.Index)
	}
	if e.ID != nil {
		return fmt.Sprintf("no such breakpoint: adapter id %d", *e.ID)
	}
	return "no such breakpoint"
}

// Collection is the BreakpointCollection of spec.md §4.1: stable 1-based
// indices allocated monotonically and never reused, an O(1) id->index
// lookup, and grouping by source path for the DAP setBreakpoints
// full-replacement call.
type Collection struct {
	byIndex map[uint32]*Breakpoint
	byID    map[int]uint32
	order   []uint32
	nextIdx uint32
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{
		byIndex: map[uint32]*Breakpoint{},
		byID:    map[int]uint32{},
	}
}

func (c *Collection) allocIndex() uint32 {
	c.nextIdx++
	return c.nextIdx
}

// AddSource allocates a fresh index and records an enabled source breakpoint.
// No dedup is performed against existing (path, line) pairs.
func (c *Collection) AddSource(path string, line uint32) uint32 {
	idx := c.allocIndex()
	c.byIndex[idx] = &Breakpoint{
		Index:   idx,
		Kind:    Source,
		Enabled: true,
		Path:    path,
		Line:    line,
	}
	c.order = append(c.order, idx)
	return idx
}

// AddFunction allocates a fresh index and records an enabled function
// breakpoint.
func (c *Collection) AddFunction(fn string) uint32 {
	idx := c.allocIndex()
	c.byIndex[idx] = &Breakpoint{
		Index:   idx,
		Kind:    Function,
		Enabled: true,
		Func:    fn,
	}
	c.order = append(c.order, idx)
	return idx
}

// Delete removes a breakpoint. Subsequent lookups by that index fail.
func (c *Collection) Delete(index uint32) error {
	bp, ok := c.byIndex[index]
	if !ok {
		return &NoSuchBreakpoint{Index: &index}
	}
	if bp.ID != nil {
		delete(c.byID, *bp.ID)
	}
	delete(c.byIndex, index)
	for i, idx := range c.order {
		if idx == index {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAll empties the collection. Index allocation is not reset: the next
// AddSource/AddFunction still allocates past the highest index ever issued.
func (c *Collection) DeleteAll() {
	c.byIndex = map[uint32]*Breakpoint{}
	c.byID = map[int]uint32{}
	c.order = nil
}

func (c *Collection) get(index uint32) (*Breakpoint, error) {
	bp, ok := c.byIndex[index]
	if !ok {
		return nil, &NoSuchBreakpoint{Index: &index}
	}
	return bp, nil
}

// SetEnabled toggles a breakpoint's enabled bit.
func (c *Collection) SetEnabled(index uint32, enabled bool) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	bp.Enabled = enabled
	return nil
}

// SetVerified directly sets verification state, used when an enable/disable
// doesn't go through the full reconcile response path.
func (c *Collection) SetVerified(index uint32, verified bool) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	bp.Verified = verified
	return nil
}

// SetID records the adapter-assigned id for a breakpoint and maintains the
// id->index index, dropping any id the breakpoint had before. It does not
// change Verified or Message; the reconciler's verification rule lives in
// ApplyVerification.
func (c *Collection) SetID(index uint32, id int) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	if bp.ID != nil {
		delete(c.byID, *bp.ID)
	}
	idCopy := id
	bp.ID = &idCopy
	c.byID[id] = index
	return nil
}

// SetPathAndLine records an adapter-resolved location for a function
// breakpoint.
func (c *Collection) SetPathAndLine(index uint32, path string, line uint32) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	bp.ResolvedPath = path
	bp.ResolvedLine = line
	return nil
}

// SetMessage records a human-readable status message (verification failure,
// adapter feedback) on a breakpoint.
func (c *Collection) SetMessage(index uint32, message string) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	bp.Message = message
	return nil
}

// GetByIndex returns a copy of the breakpoint at index.
func (c *Collection) GetByIndex(index uint32) (Breakpoint, error) {
	bp, err := c.get(index)
	if err != nil {
		return Breakpoint{}, err
	}
	return *bp, nil
}

// GetByID looks up a breakpoint by its adapter-assigned id in O(1).
func (c *Collection) GetByID(id int) (Breakpoint, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Breakpoint{}, &NoSuchBreakpoint{ID: &id}
	}
	return c.GetByIndex(idx)
}

// All returns every breakpoint in allocation order.
func (c *Collection) All() []Breakpoint {
	out := make([]Breakpoint, 0, len(c.order))
	for _, idx := range c.order {
		out = append(out, *c.byIndex[idx])
	}
	return out
}

// AllEnabledBySource groups every enabled source breakpoint by path, the
// shape the DAP setBreakpoints request needs since it replaces all
// breakpoints for a source in one call.
func (c *Collection) AllEnabledBySource() map[string][]Breakpoint {
	grouped := map[string][]Breakpoint{}
	for _, idx := range c.order {
		bp := c.byIndex[idx]
		if bp.Kind != Source || !bp.Enabled {
			continue
		}
		grouped[bp.Path] = append(grouped[bp.Path], *bp)
	}
	return grouped
}

// AllEnabledFunction returns every enabled function breakpoint.
func (c *Collection) AllEnabledFunction() []Breakpoint {
	var out []Breakpoint
	for _, idx := range c.order {
		bp := c.byIndex[idx]
		if bp.Kind == Function && bp.Enabled {
			out = append(out, *bp)
		}
	}
	return out
}

// AllPaths returns the set of every path with at least one breakpoint
// (enabled or not), used when clearing every source's breakpoints so a
// disabled-but-still-present breakpoint's source still gets an empty
// setBreakpoints call.
func (c *Collection) AllPaths() map[string]struct{} {
	paths := map[string]struct{}{}
	for _, idx := range c.order {
		bp := c.byIndex[idx]
		if bp.Kind == Source {
			paths[bp.Path] = struct{}{}
		}
	}
	return paths
}

// ApplyVerification is the reconciler update rule from spec.md §4.5: given
// the adapter id/verified/message triple returned for a breakpoint, update
// the local record. A nil id means the adapter did not assign one, which
// pessimistically auto-verifies the breakpoint (no later breakpoint-event
// can ever confirm it). verified == false with an empty message substitutes
// the canned unresolved message.
func (c *Collection) ApplyVerification(index uint32, id *int, verified bool, message string) error {
	bp, err := c.get(index)
	if err != nil {
		return err
	}
	if id == nil {
		bp.ID = nil
		bp.Verified = true
		bp.Message = message
		return nil
	}
	if bp.ID != nil {
		delete(c.byID, *bp.ID)
	}
	idCopy := *id
	bp.ID = &idCopy
	c.byID[idCopy] = index
	bp.Verified = verified
	if !verified && message == "" {
		message = unresolvedMessage
	}
	bp.Message = message
	return nil
}
