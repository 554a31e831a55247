package main

// Effect tells the caller what a navigation operation requires of it
type Effect uint8

const (
	EffectRedraw Effect = 1 << iota
	EffectPageChanged
	EffectScheduleSave
)

// Has reports whether all bits of f are set
func (e Effect) Has(f Effect) bool {
	return e&f == f
}

// Navigator owns the cursor and layout mode of a loaded archive. It has no
// idle state: one exists only while an archive is loaded.
type Navigator struct {
	cursor     int
	count      int
	mode       LayoutMode
	saveOnJump bool
}

// NewNavigator creates a navigator over count pages starting at cursor,
// clamped into range.
func NewNavigator(count, cursor int, mode LayoutMode) *Navigator {
	n := &Navigator{count: max(1, count), mode: mode}
	n.cursor = n.clamp(cursor)
	return n
}

func (n *Navigator) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i > n.count-1 {
		return n.count - 1
	}
	return i
}

func (n *Navigator) Cursor() int {
	return n.cursor
}

func (n *Navigator) Count() int {
	return n.count
}

func (n *Navigator) Mode() LayoutMode {
	return n.mode
}

// SetSaveOnJump makes JumpTo schedule a progress save like Step does
func (n *Navigator) SetSaveOnJump(enabled bool) {
	n.saveOnJump = enabled
}

// StepSize is the delta that advances one full view
func (n *Navigator) StepSize() int {
	if n.mode.Paired {
		return 2
	}
	return 1
}

func (n *Navigator) moveTo(i int) Effect {
	prev := n.cursor
	n.cursor = n.clamp(i)
	if n.cursor != prev {
		return EffectRedraw | EffectPageChanged
	}
	return EffectRedraw
}

// Step moves the cursor by delta, clamped to the page range, and always
// asks for a debounced save.
func (n *Navigator) Step(delta int) Effect {
	return n.moveTo(n.cursor+delta) | EffectScheduleSave
}

// JumpTo sets the cursor directly; out-of-range input is clamped. Jumps are
// exploratory and do not ask for a save unless SetSaveOnJump was enabled.
func (n *Navigator) JumpTo(i int) Effect {
	e := n.moveTo(i)
	if n.saveOnJump {
		e |= EffectScheduleSave
	}
	return e
}

// ToggleDoublePage flips paired display; the cursor keeps its value
func (n *Navigator) ToggleDoublePage() Effect {
	n.mode.Paired = !n.mode.Paired
	return EffectRedraw
}

// ToggleDirection flips the reading direction; the cursor keeps its value
func (n *Navigator) ToggleDirection() Effect {
	n.mode.RightToLeft = !n.mode.RightToLeft
	return EffectRedraw
}

// Reload adopts a new page count and clamps the cursor into it
func (n *Navigator) Reload(count int) Effect {
	n.count = max(1, count)
	return n.moveTo(n.cursor)
}

// Restore applies a persisted cursor without asking for another save
func (n *Navigator) Restore(cursor int) Effect {
	return n.moveTo(cursor)
}

// Visible returns the page indices currently on screen, left to right
func (n *Navigator) Visible() []int {
	left, right := SpreadSlots(n.cursor, n.count, n.mode)
	var pages []int
	for _, i := range []int{left, right} {
		if i >= 0 {
			pages = append(pages, i)
		}
	}
	return pages
}
