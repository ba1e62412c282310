package manager

import "fmt"

// modelNotFoundError is returned when a requested model name is not routable.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// ErrModelNotFound constructs the error for an unknown model name.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether the error indicates an unknown model.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// modelNotReadyError is returned while a model is still loading or failed
// to load. Retryable from the caller's perspective when state is loading.
type modelNotReadyError struct {
	name  string
	state State
}

func (e modelNotReadyError) Error() string {
	return fmt.Sprintf("model not ready: %s (state: %s)", e.name, e.state)
}

// ErrModelNotReady constructs the error for a model that cannot accept work yet.
func ErrModelNotReady(name string, state State) error {
	return modelNotReadyError{name: name, state: state}
}

// IsModelNotReady reports whether the error indicates a loading or failed model.
func IsModelNotReady(err error) bool {
	_, ok := err.(modelNotReadyError)
	return ok
}

// batchExecutionError is fanned out uniformly to every request of a failed
// batch; a partial-batch fault cannot be attributed to exactly one input.
type batchExecutionError struct {
	model string
	size  int
	cause error
}

func (e batchExecutionError) Error() string {
	return fmt.Sprintf("batch execution failed for model %s (%d requests): %v", e.model, e.size, e.cause)
}

func (e batchExecutionError) Unwrap() error { return e.cause }

// ErrBatchExecution constructs the uniform batch failure error.
func ErrBatchExecution(model string, size int, cause error) error {
	return batchExecutionError{model: model, size: size, cause: cause}
}

// IsBatchExecution reports whether the error indicates a failed batch run.
func IsBatchExecution(err error) bool {
	_, ok := err.(batchExecutionError)
	return ok
}

// unloadAbortedError is delivered to requests still queued when their model
// was unloaded mid-flight.
type unloadAbortedError struct{ name string }

func (e unloadAbortedError) Error() string {
	return "request aborted: model unloaded: " + e.name
}

// ErrUnloadAborted constructs the error delivered to aborted requests.
func ErrUnloadAborted(name string) error { return unloadAbortedError{name: name} }

// IsUnloadAborted reports whether the error indicates an unload abort.
func IsUnloadAborted(err error) bool {
	_, ok := err.(unloadAbortedError)
	return ok
}

// modelLoadError is returned by Register when the lifecycle collaborator
// rejects the load. The entry stays in state failed.
type modelLoadError struct {
	name  string
	cause error
}

func (e modelLoadError) Error() string { return "model load failed: " + e.name + ": " + e.cause.Error() }

func (e modelLoadError) Unwrap() error { return e.cause }

// ErrModelLoad constructs the error for a rejected load.
func ErrModelLoad(name string, cause error) error { return modelLoadError{name: name, cause: cause} }

// IsModelLoad reports whether the error indicates a failed model load.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}
