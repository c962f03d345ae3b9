package reconcile

// RequestDelete moves key to pending confirmation. Only existing live
// records can be requested, and only while nothing else is pending.
func RequestDelete(s State, key string) (State, bool) {
	if s.liveIndex(key) < 0 {
		return s, false
	}
	if s.Pending != "" && s.Pending != key {
		return s, false
	}
	s.Pending = key
	return s, true
}

// TakePending returns the pending key and clears it. ok is false when no
// delete was requested, in which case no delete may be issued.
func TakePending(s State) (State, string, bool) {
	key := s.Pending
	if key == "" {
		return s, "", false
	}
	s.Pending = ""
	return s, key, true
}

// AbortDelete drops the pending request without any other change.
func AbortDelete(s State) State {
	s.Pending = ""
	return s
}
