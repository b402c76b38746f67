package gameerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeDuplicateModuleColor, "player already owns a %s module", "BACKEND")
	wrapped := fmt.Errorf("play card: %w", err)

	assert.True(t, errors.Is(wrapped, ErrDuplicateModuleColor))
	assert.False(t, errors.Is(wrapped, ErrCardNotInHand))
	assert.Equal(t, CodeDuplicateModuleColor, CodeOf(wrapped))
	assert.Contains(t, err.Error(), "BACKEND")
}

func TestCategories(t *testing.T) {
	cases := map[Code]Category{
		CodeNotYourTurn:      CategoryValidation,
		CodeRoomNotFound:     CategoryNotFound,
		CodeRoomFull:         CategoryCapacity,
		CodeNotEnoughPlayers: CategoryCapacity,
		CodeAIDecisionFailed: CategoryInternalAI,
	}
	for code, want := range cases {
		cat, ok := CategoryOf(New(code, "x"))
		assert.True(t, ok)
		assert.Equal(t, want, cat, "code %s", code)
	}

	_, ok := CategoryOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
