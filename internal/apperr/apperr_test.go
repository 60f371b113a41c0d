package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsInnermostKind(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := Wrap(KindNetwork, "TodayToken", "request failed", base)
	outer := Wrap(KindBackend, "Mount", "load failed", fmt.Errorf("fetch: %w", err))

	if !IsKind(outer, KindNetwork) {
		t.Fatalf("expected network kind, got %s", KindOf(outer))
	}
	if !errors.Is(outer, base) {
		t.Fatalf("expected chain to reach base error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindStorage, "op", "msg", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestBackendStatusClassification(t *testing.T) {
	if KindOf(Backend("Login", 401, "nope")) != KindUnauthenticated {
		t.Fatalf("401 should be unauthenticated")
	}
	err := Backend("Usages", 500, "boom")
	if err.Kind != KindBackend || err.Status != 500 {
		t.Fatalf("unexpected error: %+v", err)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("plain errors have unknown kind")
	}
}
