package arena

import "fmt"

// Status — стадия жизненного цикла челленджа.
type Status string

const (
	StatusPending   Status = "pending"   // Прямой вызов ждёт ответа соперника
	StatusActive    Status = "active"    // Идёт; открытые челленджи принимают участников
	StatusCompleted Status = "completed" // Рассчитан, выплаты проведены
	StatusCancelled Status = "cancelled" // Отклонён, просрочен или возвращён
)

// Terminal сообщает, что из статуса больше нет переходов.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Event — действие, которое двигает челлендж по жизненному циклу.
type Event string

const (
	EventAccept   Event = "accept"
	EventDecline  Event = "decline"
	EventTimeout  Event = "timeout"
	EventJoin     Event = "join"
	EventBet      Event = "bet"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// transitions — единственное место, где описан автомат. Отсутствующая пара — запрещённый переход.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventAccept:  StatusActive,
		EventDecline: StatusCancelled,
		EventTimeout: StatusCancelled,
		EventCancel:  StatusCancelled,
	},
	StatusActive: {
		EventJoin:     StatusActive,
		EventBet:      StatusActive,
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
}

// TransitionError — попытка недопустимого перехода.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	switch {
	case e.From == StatusCompleted:
		return fmt.Sprintf("challenge is already completed (cannot %s)", e.Event)
	case e.From == StatusCancelled:
		return fmt.Sprintf("challenge was cancelled (cannot %s)", e.Event)
	case e.Event == EventAccept || e.Event == EventDecline:
		return "challenge is no longer waiting for a response"
	case e.Event == EventJoin || e.Event == EventBet:
		return "challenge is not active yet"
	}
	return fmt.Sprintf("cannot %s a %s challenge", e.Event, e.From)
}

// Transition возвращает статус после события или *TransitionError.
func Transition(from Status, ev Event) (Status, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, &TransitionError{From: from, Event: ev}
}
