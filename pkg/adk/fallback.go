package adk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/leadscope/pkg/logger"
)

// ErrProviderUnavailable means every backend in a fallback chain failed.
var ErrProviderUnavailable = errors.New("narrative provider unavailable")

// Step is one attempt in an ordered fallback chain.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// FirstSuccess runs steps in order and returns the first result without error.
// If all fail, the error wraps ErrProviderUnavailable and joins every step's failure.
func FirstSuccess[T any](ctx context.Context, steps ...Step[T]) (T, error) {
	var zero T
	if len(steps) == 0 {
		return zero, fmt.Errorf("%w: no backends configured", ErrProviderUnavailable)
	}
	errs := make([]error, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := s.Run(ctx)
		if err == nil {
			return v, nil
		}
		logger.Debugf("fallback step %s failed: %v", s.Name, err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrProviderUnavailable, errors.Join(errs...))
}

// Backend is a named provider in a Chain.
type Backend struct {
	Name     string
	Provider LLMProvider
}

// Chain generates text from the first backend that answers.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

// Names lists the backends in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name
	}
	return names
}

// Generate sends prompt as a single user turn, trying each backend in order. A blank
// reply counts as a failure.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	steps := make([]Step[string], 0, len(c.backends))
	for _, b := range c.backends {
		b := b
		steps = append(steps, Step[string]{
			Name: b.Name,
			Run: func(ctx context.Context) (string, error) {
				text, _, err := b.Provider.GenerateResponse(ctx, []Message{{Role: "user", Content: prompt}}, nil)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(text) == "" {
					return "", errors.New("empty response")
				}
				return text, nil
			},
		})
	}
	return FirstSuccess(ctx, steps...)
}
