package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrUserNotFound,
		ErrWithdrawalOutstanding,
		ErrAlreadyClaimed,
		ErrSupplyExceeded,
		ErrSignatureConflict,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("withdrawal abc: %w", sentinel)
		assert.True(t, errors.Is(wrapped, sentinel), sentinel.Error())
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrAlreadyClaimed, ErrAlreadyProcessed))
	assert.False(t, errors.Is(ErrNotFound, ErrUserNotFound))
}
