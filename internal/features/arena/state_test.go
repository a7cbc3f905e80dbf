package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionAllowed(t *testing.T) {
	tests := []struct {
		from Status
		ev   Event
		want Status
	}{
		{StatusPending, EventAccept, StatusActive},
		{StatusPending, EventDecline, StatusCancelled},
		{StatusPending, EventTimeout, StatusCancelled},
		{StatusPending, EventCancel, StatusCancelled},
		{StatusActive, EventJoin, StatusActive},
		{StatusActive, EventBet, StatusActive},
		{StatusActive, EventComplete, StatusCompleted},
		{StatusActive, EventCancel, StatusCancelled},
	}
	for _, tt := range tests {
		got, err := Transition(tt.from, tt.ev)
		require.NoError(t, err, "%s --%s-->", tt.from, tt.ev)
		assert.Equal(t, tt.want, got)
	}
}

func TestTransitionRejected(t *testing.T) {
	events := []Event{EventAccept, EventDecline, EventTimeout, EventJoin, EventBet, EventComplete, EventCancel}
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, from.Terminal())
		for _, ev := range events {
			got, err := Transition(from, ev)
			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, from, got)
			assert.Equal(t, ev, te.Event)
		}
	}

	for _, ev := range []Event{EventJoin, EventBet, EventComplete} {
		_, err := Transition(StatusPending, ev)
		assert.Error(t, err)
	}
	for _, ev := range []Event{EventAccept, EventDecline, EventTimeout} {
		_, err := Transition(StatusActive, ev)
		assert.Error(t, err)
	}
}

func TestTransitionErrorMessages(t *testing.T) {
	_, err := Transition(StatusCompleted, EventBet)
	assert.EqualError(t, err, "challenge is already completed (cannot bet)")
	_, err = Transition(StatusActive, EventAccept)
	assert.EqualError(t, err, "challenge is no longer waiting for a response")
	_, err = Transition(StatusPending, EventJoin)
	assert.EqualError(t, err, "challenge is not active yet")
}
