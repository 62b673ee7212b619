// internal/protocol/state.go
package protocol

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// SessionState is the lifecycle state of a Session
type SessionState string

const (
	StateDisconnected SessionState = "DISCONNECTED"
	StateHandshaking  SessionState = "HANDSHAKING"
	StateOpen         SessionState = "OPEN"
)

const (
	eventDial   = "dial"
	eventAccept = "accept"
	eventFail   = "fail"
	eventDrop   = "drop"
	eventClose  = "close"
)

// stateMachine guards session transitions:
//
//	Disconnected --dial--> Handshaking --accept--> Open
//	Handshaking --fail--> Disconnected
//	Open --drop--> Disconnected
//	Handshaking|Open --close--> Disconnected
type stateMachine struct {
	fsm *fsm.FSM
}

func newStateMachine(logger *zap.Logger) *stateMachine {
	sm := &stateMachine{}

	sm.fsm = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventDial, Src: []string{string(StateDisconnected)}, Dst: string(StateHandshaking)},
			{Name: eventAccept, Src: []string{string(StateHandshaking)}, Dst: string(StateOpen)},
			{Name: eventFail, Src: []string{string(StateHandshaking)}, Dst: string(StateDisconnected)},
			{Name: eventDrop, Src: []string{string(StateOpen)}, Dst: string(StateDisconnected)},
			{Name: eventClose, Src: []string{string(StateHandshaking), string(StateOpen)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Session state changed",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
				)
			},
		},
	)

	return sm
}

// Current returns the present state
func (sm *stateMachine) Current() SessionState {
	return SessionState(sm.fsm.Current())
}

// fire applies event. Events invalid in the current state are refused
// without changing state.
func (sm *stateMachine) fire(event string) error {
	if !sm.fsm.Can(event) {
		return fmt.Errorf("session event %q not allowed in state %s", event, sm.fsm.Current())
	}
	return sm.fsm.Event(context.Background(), event)
}

// settle applies event when it is valid and ignores it otherwise
func (sm *stateMachine) settle(event string) {
	if sm.fsm.Can(event) {
		_ = sm.fsm.Event(context.Background(), event)
	}
}
