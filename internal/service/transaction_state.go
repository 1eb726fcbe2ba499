package service

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerState is a step of the two-leg peer transfer saga.
type PeerState string

const (
	StateStart            PeerState = "START"
	StateSenderDebited    PeerState = "SENDER_DEBITED"
	StateReceiverCredited PeerState = "RECEIVER_CREDITED"
	StateRollingBack      PeerState = "ROLLING_BACK"
	StateRolledBack       PeerState = "ROLLED_BACK"
	StateRollbackFailed   PeerState = "ROLLBACK_FAILED"
	StateAborted          PeerState = "ABORTED"
)

var peerTransitions = map[PeerState]map[PeerState]struct{}{
	StateStart: {
		StateSenderDebited: {},
		StateAborted:       {},
	},
	StateSenderDebited: {
		StateReceiverCredited: {},
		StateRollingBack:      {},
		StateAborted:          {},
	},
	StateRollingBack: {
		StateRolledBack:     {},
		StateRollbackFailed: {},
	},
	StateReceiverCredited: {},
	StateRolledBack:       {},
	StateRollbackFailed:   {},
	StateAborted:          {},
}

// Terminal reports whether no further transition is possible.
func (s PeerState) Terminal() bool {
	next, ok := peerTransitions[s]
	return ok && len(next) == 0
}

func canTransition(current, next PeerState) bool {
	nextStates, ok := peerTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// peerSaga tracks the state of one peer transfer.
type peerSaga struct {
	id    uuid.UUID
	state PeerState
	trail []PeerState
}

func newPeerSaga() *peerSaga {
	return &peerSaga{id: uuid.New(), state: StateStart, trail: []PeerState{StateStart}}
}

// transition moves to next and returns the state it left.
func (s *peerSaga) transition(next PeerState) PeerState {
	if !canTransition(s.state, next) {
		panic(fmt.Sprintf("invalid peer transfer transition: %s -> %s", s.state, next))
	}
	prev := s.state
	s.state = next
	s.trail = append(s.trail, next)
	return prev
}
