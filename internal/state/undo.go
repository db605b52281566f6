package state

import "sync"

type undoEntry struct {
	name string
	fn   func()
}

type undoMode int

const (
	modeNormal undoMode = iota
	modeUndoing
	modeRedoing
)

// UndoStack is a LIFO undo manager. Actions registered while undoing land on
// the redo stack and actions registered while redoing land back on the undo
// stack, so a transaction that re-registers its own inverse gets redo for free.
//
// Registered closures run without any UndoStack lock held; they are free to
// call RegisterUndo and SetActionName.
type UndoStack struct {
	// Limit caps the number of undo entries kept. Zero means unlimited.
	Limit int

	mu   sync.Mutex
	undo []undoEntry
	redo []undoEntry
	mode undoMode
}

func NewUndoStack() *UndoStack { return &UndoStack{} }

// RegisterUndo pushes fn as the inverse of the action just performed.
func (s *UndoStack) RegisterUndo(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := undoEntry{fn: fn}
	switch s.mode {
	case modeUndoing:
		s.redo = append(s.redo, entry)
	case modeRedoing:
		s.undo = s.pushLimited(s.undo, entry)
	default:
		s.undo = s.pushLimited(s.undo, entry)
		s.redo = nil
	}
}

// SetActionName labels the most recently registered entry.
func (s *UndoStack) SetActionName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.undo
	if s.mode == modeUndoing {
		stack = s.redo
	}
	if len(stack) > 0 {
		stack[len(stack)-1].name = name
	}
}

// Undo pops and runs the newest undo entry. It reports false when there is
// nothing to undo.
func (s *UndoStack) Undo() bool {
	return s.run(modeUndoing)
}

// Redo pops and runs the newest redo entry.
func (s *UndoStack) Redo() bool {
	return s.run(modeRedoing)
}

func (s *UndoStack) run(mode undoMode) bool {
	s.mu.Lock()
	if s.mode != modeNormal {
		s.mu.Unlock()
		return false
	}
	var entry undoEntry
	if mode == modeUndoing {
		if len(s.undo) == 0 {
			s.mu.Unlock()
			return false
		}
		entry = s.undo[len(s.undo)-1]
		s.undo = s.undo[:len(s.undo)-1]
	} else {
		if len(s.redo) == 0 {
			s.mu.Unlock()
			return false
		}
		entry = s.redo[len(s.redo)-1]
		s.redo = s.redo[:len(s.redo)-1]
	}
	s.mode = mode
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.mode = modeNormal
		s.mu.Unlock()
	}()
	entry.fn()
	return true
}

func (s *UndoStack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *UndoStack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// UndoActionName is the label of the entry Undo would run next.
func (s *UndoStack) UndoActionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return ""
	}
	return s.undo[len(s.undo)-1].name
}

// RedoActionName is the label of the entry Redo would run next.
func (s *UndoStack) RedoActionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return ""
	}
	return s.redo[len(s.redo)-1].name
}

// RemoveAll forgets every entry, e.g. after the document was reloaded.
func (s *UndoStack) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = nil
	s.redo = nil
}

func (s *UndoStack) pushLimited(stack []undoEntry, entry undoEntry) []undoEntry {
	stack = append(stack, entry)
	if s.Limit > 0 && len(stack) > s.Limit {
		stack = append([]undoEntry(nil), stack[len(stack)-s.Limit:]...)
	}
	return stack
}
