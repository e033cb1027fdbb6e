package checkout

import "errors"

type State string

const (
	StateIdle            State = "IDLE"
	StateCreatingIntent  State = "CREATING_INTENT"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateConfirming      State = "CONFIRMING"
	StateSucceeded       State = "SUCCEEDED"
	StateFailed          State = "FAILED"
)

func (s State) String() string {
	return string(s)
}

var allowedTransitions = map[State]map[State]bool{
	StateIdle: {
		StateCreatingIntent: true,
	},
	StateCreatingIntent: {
		StateAwaitingPayment: true,
		StateFailed:          true,
	},
	StateAwaitingPayment: {
		StateConfirming: true,
	},
	StateConfirming: {
		StateSucceeded:       true,
		StateAwaitingPayment: true,
		StateFailed:          true,
	},
	// из Failed: повтор создания intent (Idle) или снова форма оплаты
	StateFailed: {
		StateIdle:            true,
		StateAwaitingPayment: true,
	},
	StateSucceeded: {},
}

var ErrInvalidTransition = errors.New("invalid checkout state transition")

func canTransition(from, to State) bool {
	next, ok := allowedTransitions[from]
	return ok && next[to]
}
