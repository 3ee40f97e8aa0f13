package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHappyPath(t *testing.T) {
	run := NewRun("run-1", "quiz.pdf")
	assert.Equal(t, StateIdle, run.State)
	assert.NotNil(t, run.Questions)

	for _, s := range []RunState{
		StateFormatChecked,
		StateTextExtracted,
		StateQuestionsExtracted,
		StateAnswersAcquired,
		StateAssembled,
		StateDone,
	} {
		require.NoError(t, run.Transition(s))
		assert.Equal(t, s, run.State)
	}
	assert.True(t, run.State.IsTerminal())
}

func TestRunInvalidTransitions(t *testing.T) {
	run := NewRun("run-1", "quiz.pdf")

	err := run.Transition(StateTextExtracted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, run.State)

	require.NoError(t, run.Transition(StateFormatChecked))
	assert.ErrorIs(t, run.Transition(StateIdle), ErrInvalidTransition)
	assert.ErrorIs(t, run.Transition(StateFormatChecked), ErrInvalidTransition)
}

func TestRunFailFromAnyStage(t *testing.T) {
	run := NewRun("run-1", "quiz.pdf")
	require.NoError(t, run.Transition(StateFormatChecked))

	run.Fail(ErrorKindStorage, errors.New("disk full"))
	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, ErrorKindStorage, run.ErrorKind)
	assert.Equal(t, "disk full", run.Error)

	// 终止状态不能再转换
	assert.ErrorIs(t, run.Transition(StateFailed), ErrInvalidTransition)
	assert.ErrorIs(t, run.Transition(StateTextExtracted), ErrInvalidTransition)
}

func TestRunNoQuestions(t *testing.T) {
	run := NewRun("run-1", "empty.docx")
	assert.False(t, run.NoQuestions())

	require.NoError(t, run.Transition(StateFormatChecked))
	require.NoError(t, run.Transition(StateTextExtracted))
	require.NoError(t, run.Transition(StateQuestionsExtracted))
	assert.True(t, run.NoQuestions())

	run.Questions = []string{"Is there a question here?"}
	assert.False(t, run.NoQuestions())
}

func TestRunFailedAnswers(t *testing.T) {
	run := NewRun("run-1", "quiz.pdf")
	run.Results = []AnswerResult{
		{Index: 1, Question: "Is one ok?", Answer: "Yes."},
		{Index: 2, Question: "Is two ok?", Answer: "Unable to generate an answer at this time.", Failed: true},
	}
	assert.Equal(t, 1, run.FailedAnswers())
}
