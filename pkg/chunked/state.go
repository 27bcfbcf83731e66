package chunked

// State is the lifecycle state of a download.
type State int32

const (
	// StateInit means the stream has been created but nothing has started.
	StateInit State = iota
	// StateResolving means the object's size is being looked up.
	StateResolving
	// StateDownloading means chunks are being fetched and emitted.
	StateDownloading
	// StateComplete means every chunk was emitted. Terminal.
	StateComplete
	// StateError means the download failed. Terminal.
	StateError
	// StateCancelled means the reader closed the stream early. Terminal.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResolving:
		return "resolving"
	case StateDownloading:
		return "downloading"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transitions leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}
