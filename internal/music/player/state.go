package player

// State is where a guild's playback stands.
type State int

const (
	StateIdle State = iota
	StateStarting
	StatePlaying
	StatePaused
	StateRecovering
	// StateStopped follows an explicit stop: the queue and session stay,
	// player events are ignored until playback is started again.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateRecovering:
		return "recovering"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Event int

const (
	EventStart Event = iota
	EventStreamOpened
	EventStreamFailed
	EventQueueEmpty
	EventPause
	EventResume
	EventFinished
	EventError
	EventSkip
	EventStop
	EventShutdown
)

func (e Event) String() string {
	return [...]string{
		"start", "stream_opened", "stream_failed", "queue_empty", "pause",
		"resume", "finished", "error", "skip", "stop", "shutdown",
	}[e]
}

// Next is the transition table. ok is false when ev means nothing in s and
// must be ignored.
func Next(s State, ev Event) (State, bool) {
	switch ev {
	case EventQueueEmpty, EventShutdown:
		return StateIdle, true
	case EventStop:
		if s == StateIdle {
			return StateIdle, true
		}
		return StateStopped, true
	}

	switch s {
	case StateIdle, StateRecovering, StateStopped, StateStarting:
		if ev == EventStart {
			return StateStarting, true
		}
		if s == StateStarting {
			switch ev {
			case EventStreamOpened:
				return StatePlaying, true
			case EventStreamFailed:
				return StateRecovering, true
			}
		}
	case StatePlaying:
		switch ev {
		case EventPause:
			return StatePaused, true
		case EventSkip:
			return StatePlaying, true
		case EventFinished:
			return StateStarting, true
		case EventError:
			return StateRecovering, true
		}
	case StatePaused:
		switch ev {
		case EventResume:
			return StatePlaying, true
		case EventSkip:
			return StatePaused, true
		case EventFinished:
			return StateStarting, true
		case EventError:
			return StateRecovering, true
		}
	}
	return s, false
}
