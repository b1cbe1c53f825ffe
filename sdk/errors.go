package sdk

// ContextError reports misuse of the instrumentation API, such as opening a
// step with no active run. It signals a programming error in the instrumented
// pipeline, not a runtime fault, so it is surfaced to the caller immediately.
type ContextError struct {
	msg string
}

func (e *ContextError) Error() string {
	return e.msg
}

// ErrNoActiveRun is returned by StartStep when the context carries no run.
var ErrNoActiveRun = &ContextError{msg: "xray: no active run in context"}
