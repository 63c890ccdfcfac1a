package player

import "testing"

func TestNext(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
		to   State
		ok   bool
	}{
		{StateIdle, EventStart, StateStarting, true},
		{StateStarting, EventStreamOpened, StatePlaying, true},
		{StateStarting, EventStreamFailed, StateRecovering, true},
		{StateRecovering, EventStart, StateStarting, true},
		{StatePlaying, EventPause, StatePaused, true},
		{StatePaused, EventResume, StatePlaying, true},
		{StatePlaying, EventFinished, StateStarting, true},
		{StatePlaying, EventError, StateRecovering, true},
		{StatePaused, EventFinished, StateStarting, true},
		{StatePlaying, EventStop, StateStopped, true},
		{StateStopped, EventStop, StateStopped, true},
		{StateStopped, EventStart, StateStarting, true},
		{StatePlaying, EventQueueEmpty, StateIdle, true},
		{StatePaused, EventShutdown, StateIdle, true},

		{StateIdle, EventFinished, StateIdle, false},
		{StateStopped, EventFinished, StateStopped, false},
		{StateStopped, EventError, StateStopped, false},
		{StatePaused, EventPause, StatePaused, false},
		{StatePlaying, EventResume, StatePlaying, false},
		{StateIdle, EventSkip, StateIdle, false},
		{StatePlaying, EventStart, StatePlaying, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			to, ok := Next(tt.from, tt.ev)
			if to != tt.to || ok != tt.ok {
				t.Errorf("Next(%v, %v) = %v, %v; want %v, %v", tt.from, tt.ev, to, ok, tt.to, tt.ok)
			}
		})
	}
}
