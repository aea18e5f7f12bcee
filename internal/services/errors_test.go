package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"marketscout/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "scoring", "lookup", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scoring", "lookup", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureClassification(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		perItem bool
		fatal   bool
	}{
		{"nil", nil, false, false},
		{"timeout", services.Wrap(services.ErrTimeout, "scoring", "llm", "deadline", nil), true, false},
		{"transient", fmt.Errorf("lookup: %w", services.ErrTransient), true, false},
		{"not found", services.Wrap(services.ErrNotFound, "discovery", "app", "missing", nil), true, false},
		{"configuration", services.Wrap(services.ErrConfiguration, "processor", "dispatch", "bad type", nil), false, true},
		{"validation", services.Wrap(services.ErrValidation, "processor", "params", "seed missing", nil), false, true},
		{"canceled", context.Canceled, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsPerItem(tc.err); got != tc.perItem {
				t.Fatalf("IsPerItem = %v, want %v", got, tc.perItem)
			}
			if got := services.IsJobFatal(tc.err); got != tc.fatal {
				t.Fatalf("IsJobFatal = %v, want %v", got, tc.fatal)
			}
		})
	}
}
