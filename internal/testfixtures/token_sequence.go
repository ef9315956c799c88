package testfixtures

import (
	"fmt"
	"sync"
)

// TokenSequence produces deterministic reservation tokens for tests.
type TokenSequence struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewTokenSequence constructs a sequence that yields tokens with the given
// prefix. When prefix is empty, "token" is used.
func NewTokenSequence(prefix string) *TokenSequence {
	if prefix == "" {
		prefix = "token"
	}
	return &TokenSequence{prefix: prefix}
}

// Next returns the next token in the sequence.
func (g *TokenSequence) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter), nil
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *TokenSequence) NextFunc() func() (string, error) {
	if g == nil {
		return func() (string, error) { return "", fmt.Errorf("token sequence is nil") }
	}
	return g.Next
}

// Last returns the most recently issued token, or "" before the first.
func (g *TokenSequence) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counter == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// SetCounter overrides the internal counter, enabling deterministic resets.
func (g *TokenSequence) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}
