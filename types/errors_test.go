package types

import (
	"errors"
	"testing"
)

func TestInvalidTransferRequestErrorMatchesAnyReason(t *testing.T) {
	err := InvalidTransferRequestError{Reason: "stale ValidUntilCycle"}
	if !errors.Is(err, ErrInvalidTransferRequest) {
		t.Fatal("errors.Is should match any InvalidTransferRequestError regardless of reason")
	}
	if errors.Is(err, ErrNoCycle) {
		t.Fatal("InvalidTransferRequestError should not match an unrelated sentinel")
	}
}
