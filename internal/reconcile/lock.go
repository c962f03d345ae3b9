package reconcile

// Acquire marks key busy. It is refused when key is already busy.
func Acquire(s State, key string) (State, bool) {
	if s.IsBusy(key) {
		return s, false
	}
	busy := make(map[string]struct{}, len(s.busy)+1)
	for k := range s.busy {
		busy[k] = struct{}{}
	}
	busy[key] = struct{}{}
	s.busy = busy
	return s, true
}

// Release marks key idle. Releasing an idle key is allowed.
func Release(s State, key string) State {
	if !s.IsBusy(key) {
		return s
	}
	busy := make(map[string]struct{}, len(s.busy))
	for k := range s.busy {
		if k != key {
			busy[k] = struct{}{}
		}
	}
	s.busy = busy
	return s
}

// IsBusy reports whether an update or delete is outstanding for key.
func (s State) IsBusy(key string) bool {
	_, ok := s.busy[key]
	return ok
}
