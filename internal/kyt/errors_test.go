package kyt

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKind_MatchesDirectError(t *testing.T) {
	err := NewError(KindTxNotFound, "bitcoin", "not found", nil)
	if !IsKind(err, KindTxNotFound) {
		t.Fatalf("expected IsKind to match the error's own Kind")
	}
	if IsKind(err, KindRateLimited) {
		t.Fatalf("expected IsKind to reject a different Kind")
	}
}

func TestIsKind_MatchesWrappedError(t *testing.T) {
	inner := NewError(KindProviderTransient, "bitcoin", "timeout", nil)
	wrapped := fmt.Errorf("fetch failed: %w", inner)
	if !IsKind(wrapped, KindProviderTransient) {
		t.Fatalf("expected IsKind to see through %%w wrapping")
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewError(KindProviderTerminal, "ethereum", "rpc dial failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestNewRateLimited_CarriesRetryAfter(t *testing.T) {
	err := NewRateLimited("bitcoin", 2.5)
	if err.Kind != KindRateLimited {
		t.Fatalf("expected KindRateLimited, got %s", err.Kind)
	}
	if err.RetryAfter != 2.5 {
		t.Fatalf("expected RetryAfter=2.5, got %v", err.RetryAfter)
	}
}

func TestError_Error_IncludesChainWhenSet(t *testing.T) {
	err := NewError(KindUnsupportedChain, "dogecoin", "not in registry", nil)
	if got := err.Error(); got != "UnsupportedChain[dogecoin]: not in registry" {
		t.Fatalf("unexpected error string: %q", got)
	}
}
