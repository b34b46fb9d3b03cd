package wire

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewErrorFormatsMessage(t *testing.T) {
	err := NewError(ErrAgentNotFound, "agent %s missing", "agent-1")
	if err.Kind != ErrAgentNotFound {
		t.Fatalf("expected kind %s, got %s", ErrAgentNotFound, err.Kind)
	}
	if err.Message != "agent-1 missing" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}

func TestWrapPreservesCauseInChain(t *testing.T) {
	cause := errors.New("dial refused")
	err := Wrap(ErrClusterUnavailable, cause, "dialing cluster-a")
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if got := errors.Unwrap(err); got != cause {
		t.Fatalf("expected Unwrap to return the cause, got %v", got)
	}
}

func TestIsMatchesOnKindOnly(t *testing.T) {
	a := NewError(ErrTimeout, "first attempt")
	b := NewError(ErrTimeout, "second attempt, different message")
	if !errors.Is(a, b) {
		t.Fatal("expected two errors of the same kind to match via errors.Is")
	}

	c := NewError(ErrClusterError, "different kind")
	if errors.Is(a, c) {
		t.Fatal("expected errors of different kinds to not match")
	}
}

func TestKindOfExtractsKindFromWrappedError(t *testing.T) {
	err := fmt.Errorf("spawning: %w", NewError(ErrNoCapacity, "cluster full"))
	if got := KindOf(err); got != ErrNoCapacity {
		t.Fatalf("expected %s, got %s", ErrNoCapacity, got)
	}
	if got := KindOf(errors.New("plain error")); got != "" {
		t.Fatalf("expected empty kind for a non-wire error, got %s", got)
	}
}
