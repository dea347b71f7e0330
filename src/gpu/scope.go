package gpu

// Scope releases the resources it tracks in reverse order of acquisition.
// A zero Scope is ready to use.
type Scope struct {
	res []Resource
}

// Track registers r for release and returns it unchanged.
func Track[T Resource](s *Scope, r T) T {
	s.res = append(s.res, r)
	return r
}

// Len reports how many resources are tracked.
func (s *Scope) Len() int { return len(s.res) }

// Release frees everything tracked. Safe to call more than once.
func (s *Scope) Release() {
	for i := len(s.res) - 1; i >= 0; i-- {
		s.res[i].Release()
	}
	s.res = nil
}
