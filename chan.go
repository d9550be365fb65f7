package signals

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TryReceive receives a value from c if one is ready, without blocking.
func TryReceive[T any](c <-chan T) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	default:
		return v, false
	}
}

// Drain empties c without blocking and returns what was in it.
func Drain[T any](c <-chan T) []T {
	var ret []T
	for {
		v, ok := TryReceive(c)
		if !ok {
			return ret
		}
		ret = append(ret, v)
	}
}
