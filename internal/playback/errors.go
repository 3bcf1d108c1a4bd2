package playback

import "fmt"

// Kind classifies why a cycle stopped early.
type Kind int

const (
	KindSettingFetchFailed Kind = iota + 1
	KindQueueFetchFailed
	KindStreamOpenFailed
	KindPlayedAtUpdateFailed
	KindPlayStartTimeout
	KindIdleTimeout
	KindQueueAdvanceFailed
)

func (k Kind) String() string {
	switch k {
	case KindSettingFetchFailed:
		return "setting fetch failed"
	case KindQueueFetchFailed:
		return "queue fetch failed"
	case KindStreamOpenFailed:
		return "stream open failed"
	case KindPlayedAtUpdateFailed:
		return "played-at update failed"
	case KindPlayStartTimeout:
		return "play start timeout"
	case KindIdleTimeout:
		return "idle timeout"
	case KindQueueAdvanceFailed:
		return "queue advance failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type CycleError struct {
	Kind Kind
	Err  error
}

func (e *CycleError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *CycleError) Unwrap() error { return e.Err }

// Is matches another CycleError of the same kind, so callers can write
// errors.Is(err, &CycleError{Kind: KindIdleTimeout}).
func (e *CycleError) Is(target error) bool {
	t, ok := target.(*CycleError)
	return ok && t.Kind == e.Kind
}
