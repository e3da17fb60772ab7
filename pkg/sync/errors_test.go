package sync

import (
	"errors"
	"strings"
	"testing"
)

func TestSyncErrorClassification(t *testing.T) {
	authErr := NewAuthError("credential rejected", errors.New("401"))
	if !IsAuth(authErr) {
		t.Error("auth error not classified as auth")
	}
	if IsDiscovery(authErr) {
		t.Error("auth error classified as discovery")
	}

	wrapped := NewDiscoveryError("listing networks", errors.New("throttled"))
	if !IsDiscovery(wrapped) {
		t.Error("discovery error not classified")
	}
	if !strings.Contains(wrapped.Error(), "throttled") {
		t.Errorf("cause missing from %q", wrapped.Error())
	}
}

func TestSyncErrorWithObject(t *testing.T) {
	err := NewReconcileError("create or update failed", errors.New("500")).
		WithObject(KindPrefix, "10.0.0.0/16")
	msg := err.Error()
	if !strings.Contains(msg, "10.0.0.0/16") || !strings.Contains(msg, string(KindPrefix)) {
		t.Errorf("object context missing from %q", msg)
	}
	if !errors.Is(err, err) {
		t.Error("error not Is-comparable to itself")
	}
}

func TestParentSkippedError(t *testing.T) {
	err := NewParentSkippedError("10.0.0.0/16")
	if !IsParentSkipped(err) {
		t.Error("parent skip not classified")
	}
	if !strings.Contains(err.Error(), "10.0.0.0/16") {
		t.Errorf("parent key missing from %q", err.Error())
	}
}
