package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type taggedErr struct{ tag ContractErrorTag }

func (e taggedErr) Error() string               { return "reverted" }
func (e taggedErr) ErrorTag() ContractErrorTag { return e.tag }

func TestErrorTag(t *testing.T) {
	tag, ok := ErrorTag(taggedErr{TagInvalidReveal})
	assert.True(t, ok)
	assert.Equal(t, TagInvalidReveal, tag)

	tag, ok = ErrorTag(errors.New(`execution reverted: custom error AlreadyCommitted()`))
	assert.True(t, ok)
	assert.Equal(t, TagAlreadyCommitted, tag)

	// unknown names before a known one are skipped
	tag, ok = ErrorTag(errors.New(`call revertVote(1) failed: OnlyCreator()`))
	assert.True(t, ok)
	assert.Equal(t, TagOnlyCreator, tag)

	_, ok = ErrorTag(errors.New("dial tcp: connection refused"))
	assert.False(t, ok)
	_, ok = ErrorTag(nil)
	assert.False(t, ok)
}

func TestHumanMessage(t *testing.T) {
	fallback := "Failed to resolve. Please try again."

	assert.Equal(t, "Vote or salt doesn't match your commitment.",
		HumanMessage(fmt.Errorf("chain: reveal: %w", taggedErr{TagInvalidReveal}), fallback))
	assert.Equal(t, "Phase hasn't ended yet.",
		HumanMessage(errors.New("RevealPhaseNotEnded()"), fallback))
	assert.Equal(t, "Description is required",
		HumanMessage(&InputError{Field: "description", Message: "Description is required"}, fallback))
	assert.Equal(t, fallback, HumanMessage(errors.New("i/o timeout"), fallback))
	assert.Equal(t, "", HumanMessage(nil, fallback))

	for tag := range ErrorMessages {
		assert.NotEmpty(t, HumanMessage(taggedErr{tag}, fallback))
	}
	assert.Len(t, ErrorMessages, 12)
}

func TestInputErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &InputError{Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseVote(t *testing.T) {
	for in, want := range map[string]Vote{"yes": VoteYes, "YES": VoteYes, " y ": VoteYes, "1": VoteYes, "no": VoteNo, "N": VoteNo, "2": VoteNo} {
		got, err := ParseVote(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "maybe", "3"} {
		_, err := ParseVote(in)
		assert.ErrorIs(t, err, ErrInvalidVote, in)
	}
	assert.False(t, VoteNone.Valid())
}
