package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError(IOError, cause, "failed to remove %s", "bootstrap")

	if err.Error() != "failed to remove bootstrap: disk on fire" {
		t.Fatalf("unexpected message: %s", err)
	}

	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable")
	}

	wrapped := fmt.Errorf("stage II: %w", err)

	if !Is(wrapped, IOError) {
		t.Fatalf("kind should survive wrapping")
	}
	if Is(wrapped, FormatError) {
		t.Fatalf("wrong kind matched")
	}
	if Is(cause, IOError) {
		t.Fatalf("plain errors have no kind")
	}
}

func TestErrKindString(t *testing.T) {
	if CancelledError.String() != "Cancelled" {
		t.Fatalf("unexpected %s", CancelledError)
	}
	if ErrKind(99).String() != "Unknown" {
		t.Fatalf("unexpected %s", ErrKind(99))
	}
}

func TestStoreErr(t *testing.T) {
	err := error(NewStoreErr("Run", KeyNotFound, "run_1"))

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}
	if IsStore(err, Empty) {
		t.Fatalf("unexpected Empty")
	}
	if err.Error() != "Run, run_1, Not Found" {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestAvailableDiskSpace(t *testing.T) {
	free, err := AvailableDiskSpace(t.TempDir())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if free == 0 {
		t.Fatalf("expected some free space")
	}
}
