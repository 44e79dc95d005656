package runner

// Phase is where the runner is within the current launch.
type Phase int

const (
	// NotRequested means no run-request marker was found; nothing runs.
	NotRequested Phase = iota
	// Loading means the checkpoint is being read and the launch counted.
	Loading
	// Replaying means registrations are being matched against the checkpoint.
	Replaying
	// Executing means a test body is running.
	Executing
	// Persisting means progress is being written after a body returned.
	Persisting
	// Done means the session finished and the checkpoint was removed.
	Done
)

func (p Phase) String() string {
	switch p {
	case NotRequested:
		return "not-requested"
	case Loading:
		return "loading"
	case Replaying:
		return "replaying"
	case Executing:
		return "executing"
	case Persisting:
		return "persisting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
