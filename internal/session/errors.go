package session

// busyError signals admission timeout/overflow on the lane.
type busyError struct{ reason string }

func (e busyError) Error() string { return "session busy: " + e.reason }

// IsBusy reports whether err indicates lane backpressure.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}
