package store

import (
	"errors"
	"fmt"
	"testing"
)

// Compile-time checks that the interfaces are importable and usable.
func TestLedgerStoreInterfaceExists(t *testing.T) {
	_ = StoreAddressParams{}
	_ = ReviewParams{}

	var _ LedgerStore
	var _ Tx
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrInsufficientFunds,
		ErrRateUnavailable,
		ErrNotFound,
		ErrInvalidState,
		ErrDuplicatePosition,
		ErrDuplicateTransaction,
		ErrConcurrentModification,
		ErrInvalidInput,
		ErrUnauthorized,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("outer: %w", fmt.Errorf("%w: detail", sentinel))
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("Expected wrapped error to match %v", sentinel)
		}
		for _, other := range sentinels {
			if other != sentinel && errors.Is(wrapped, other) {
				t.Errorf("%v unexpectedly matches %v", sentinel, other)
			}
		}
	}
}
