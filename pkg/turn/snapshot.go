package turn

// Snapshot is the deep-read-only view of a conversation's turn history
// handed to ContextManager at the start of each LLM request (§4.2
// snapshot_for_context, §3 Ownership: "one-way sync"). Mutating a
// Snapshot never affects the StateManager it was taken from.
type Snapshot struct {
	Turns   []*Turn
	Current *Turn
}

// SnapshotForContext returns a deep-read-only view of the conversation
// for ContextManager to assemble from.
func (sm *StateManager) SnapshotForContext() Snapshot {
	return Snapshot{
		Turns:   sm.History(),
		Current: sm.Current(),
	}
}

// AllTurns returns history plus the current turn (if any), oldest first.
func (s Snapshot) AllTurns() []*Turn {
	if s.Current == nil {
		return s.Turns
	}
	out := make([]*Turn, 0, len(s.Turns)+1)
	out = append(out, s.Turns...)
	out = append(out, s.Current)
	return out
}

// SystemNotes collects every system message across all turns, newest
// first, for the §4.4 "system_notes" context key.
func (s Snapshot) SystemNotes() []string {
	all := s.AllTurns()
	var notes []string
	for i := len(all) - 1; i >= 0; i-- {
		msgs := all[i].SystemMessages
		for j := len(msgs) - 1; j >= 0; j-- {
			notes = append(notes, msgs[j])
		}
	}
	return notes
}
