package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition_Allowed(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusActive, StatusPaused},
		{StatusActive, StatusReviewing},
		{StatusActive, StatusDeclined},
		{StatusPaused, StatusActive},
		{StatusPaused, StatusDeclined},
		{StatusReviewing, StatusConfirmed},
		{StatusReviewing, StatusDeclined},
	}
	for _, c := range cases {
		t.Run(string(c.from)+"->"+string(c.to), func(t *testing.T) {
			assert.NoError(t, ValidateTransition(c.from, c.to, false))
		})
	}
}

func TestValidateTransition_Rejected(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusConfirmed, StatusActive},
		{StatusDeclined, StatusActive},
		{StatusActive, StatusConfirmed},
		{StatusPaused, StatusReviewing},
		{StatusReviewing, StatusActive},
	}
	for _, c := range cases {
		t.Run(string(c.from)+"->"+string(c.to), func(t *testing.T) {
			err := ValidateTransition(c.from, c.to, false)
			require.Error(t, err)
			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, c.from, te.From)
			assert.Equal(t, c.to, te.To)
		})
	}
}

func TestValidateTransition_Force(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusConfirmed, StatusActive, true))
	assert.NoError(t, ValidateTransition(StatusDeclined, StatusPaused, true))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusConfirmed))
	assert.True(t, IsTerminal(StatusDeclined))
	assert.False(t, IsTerminal(StatusActive))
	assert.False(t, IsTerminal(StatusPaused))
	assert.False(t, IsTerminal(StatusReviewing))
}

func TestTransitionError_Message(t *testing.T) {
	err := ValidateTransition(StatusConfirmed, StatusActive, false)
	assert.Equal(t, "invalid transition: confirmed -> active", err.Error())
}
