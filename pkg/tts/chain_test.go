package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/wheredamilk/go-wheredamilk/internal/log"
)

func TestChain_FirstProviderWins(t *testing.T) {
	primary := NewMock()
	fallback := NewMock()
	chain, err := NewChain(log.L(), primary, fallback)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	if _, err := chain.Synthesize(context.Background(), "hello"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if primary.CallCount() != 1 {
		t.Errorf("Expected primary called once, got %d", primary.CallCount())
	}
	if fallback.CallCount() != 0 {
		t.Errorf("Fallback should not be called when primary succeeds, got %d", fallback.CallCount())
	}
}

func TestChain_FallsBackOnFailure(t *testing.T) {
	boom := errors.New("boom")
	primary := Failing(boom)
	fallback := NewMock()
	chain, _ := NewChain(log.L(), primary, fallback)

	result, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if result == nil || len(result.Audio) == 0 {
		t.Error("Expected audio from fallback")
	}
}

func TestChain_AllFailAggregates(t *testing.T) {
	boom := errors.New("boom")
	chain, _ := NewChain(log.L(), Failing(boom), Failing(boom))

	_, err := chain.Synthesize(context.Background(), "hello")
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T: %v", err, err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 aggregated errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, boom) {
		t.Error("ChainError should unwrap to the last provider error")
	}
}

func TestChain_RequiresProviders(t *testing.T) {
	if _, err := NewChain(log.L()); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}
