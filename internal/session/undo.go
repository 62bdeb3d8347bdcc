package session

// UndoManager keeps at most one snapshot of the session.
type UndoManager struct {
	snap *Session
}

// Snapshot stores a deep copy of s, replacing any earlier snapshot.
func (u *UndoManager) Snapshot(s Session) {
	c := s.Clone()
	u.snap = &c
}

// Available reports whether a snapshot is held.
func (u *UndoManager) Available() bool {
	return u.snap != nil
}

// Restore copies the snapshot's phase, character, messages, choices and
// attack options onto s and clears the snapshot. It reports false when
// there was nothing to restore.
func (u *UndoManager) Restore(s *Session) bool {
	if u.snap == nil {
		return false
	}
	snap := u.snap.Clone()
	u.snap = nil

	s.Phase = snap.Phase
	s.Character = snap.Character
	s.Messages = orEmpty(snap.Messages)
	s.Choices = orEmpty(snap.Choices)
	s.AttackOptions = orEmpty(snap.AttackOptions)
	return true
}

// Clear drops the snapshot.
func (u *UndoManager) Clear() {
	u.snap = nil
}
