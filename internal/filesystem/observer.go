package filesystem

// Observer receives filesystem telemetry. The concrete implementation lives
// in the metrics package; declaring the interface here keeps filesystem free
// of a metrics import (metrics itself depends on nothing in this package).
type Observer interface {
	// ObserveOperation records duration and error status for one filesystem
	// call. volume is the resolved mount label ("assets", "cache",
	// "catalog"); operation is "stat", "read", "write", or "readdir".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// Retry telemetry for the NFS stale-handle path.
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// nopObserver drops every observation. It is the default so tests and CLI
// commands that never wire metrics pay nothing.
type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error)  {}
func (nopObserver) ObserveRetryAttempt(string, string)               {}
func (nopObserver) ObserveRetrySuccess(string, string)               {}
func (nopObserver) ObserveRetryFailure(string, string)               {}
func (nopObserver) ObserveRetryDuration(string, string, float64)     {}
func (nopObserver) ObserveStaleError(string, string)                 {}

var activeObserver Observer = nopObserver{}

// SetObserver installs the metrics observer. Call once at startup; a nil
// argument restores the no-op default.
func SetObserver(o Observer) {
	if o == nil {
		activeObserver = nopObserver{}
		return
	}
	activeObserver = o
}

func observe() Observer {
	return activeObserver
}
