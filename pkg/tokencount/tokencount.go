// Package tokencount provides the TokenCounter described in the Agent
// Core spec §4.1: a per-model token counter that resolves, once at
// construction, through a fixed fallback chain and binds to the first
// backend that succeeds.
package tokencount

import (
	"context"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// NativeCounter is the optional transport-native counter probed first
// at construction (§4.1 resolution step 1: "native counter exposed by
// the LLM transport for the configured model"). Implementations that
// can't reach a live transport should return an error from CountTokens
// so construction falls through to the next resolution step.
type NativeCounter interface {
	CountTokens(ctx context.Context, model string, text string) (int, error)
}

// backend is the resolved counting strategy for the lifetime of a
// TokenCounter. Runtime failures of a chosen backend fall through to
// charsPerToken for that single call only; they never rebind the
// counter (§4.1: "do not rebind the counter").
type backend int

const (
	backendNative backend = iota
	backendTiktoken
	backendCharsPerFour
)

const charsPerToken = 4

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

// TokenCounter counts tokens for a single configured model using the
// first backend in the resolution chain that succeeded at construction
// time. Counts from two different TokenCounters (even for the same
// model string, if backed by different resolution outcomes) are not
// comparable; see the package-level Guarantees note in spec §4.1.
type TokenCounter struct {
	model    string
	resolved backend
	encoding *tiktoken.Tiktoken
	native   NativeCounter
	ctx      context.Context
}

// Option configures New.
type Option func(*options)

type options struct {
	native NativeCounter
	ctx    context.Context
}

// WithNativeCounter supplies the transport-native counter probed as
// resolution step 1.
func WithNativeCounter(ctx context.Context, n NativeCounter) Option {
	return func(o *options) {
		o.native = n
		o.ctx = ctx
	}
}

// New resolves a TokenCounter for model, walking the fallback chain:
// native transport counter -> model-family BPE encoding -> generic
// cl100k_base encoding -> chars/4. The first backend that successfully
// counts a short probe string is bound for the counter's lifetime.
func New(model string, opts ...Option) *TokenCounter {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	tc := &TokenCounter{model: model, ctx: o.ctx}

	if o.native != nil {
		ctx := o.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if _, err := o.native.CountTokens(ctx, model, "probe"); err == nil {
			tc.resolved = backendNative
			tc.native = o.native
			return tc
		}
	}

	if enc, ok := lookupEncoding(model); ok {
		tc.resolved = backendTiktoken
		tc.encoding = enc
		return tc
	}

	if enc, err := getCachedEncoding("cl100k_base", func() (*tiktoken.Tiktoken, error) {
		return tiktoken.GetEncoding("cl100k_base")
	}); err == nil {
		tc.resolved = backendTiktoken
		tc.encoding = enc
		return tc
	}

	tc.resolved = backendCharsPerFour
	return tc
}

func lookupEncoding(model string) (*tiktoken.Tiktoken, bool) {
	enc, err := getCachedEncoding(model, func() (*tiktoken.Tiktoken, error) {
		return tiktoken.EncodingForModel(model)
	})
	if err != nil {
		return nil, false
	}
	return enc, true
}

func getCachedEncoding(key string, resolve func() (*tiktoken.Tiktoken, error)) (*tiktoken.Tiktoken, error) {
	cacheMu.RLock()
	if enc, ok := encodingCache[key]; ok {
		cacheMu.RUnlock()
		return enc, nil
	}
	cacheMu.RUnlock()

	enc, err := resolve()
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	encodingCache[key] = enc
	cacheMu.Unlock()
	return enc, nil
}

// Count returns the non-negative token count of text under the
// counter's resolved backend. A runtime failure of the native backend
// falls through to chars/4 for this call only.
func (tc *TokenCounter) Count(text string) int {
	switch tc.resolved {
	case backendNative:
		ctx := tc.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if n, err := tc.native.CountTokens(ctx, tc.model, text); err == nil {
			return n
		}
		return charsPerTokenEstimate(text)
	case backendTiktoken:
		return len(tc.encoding.Encode(text, nil, nil))
	default:
		return charsPerTokenEstimate(text)
	}
}

func charsPerTokenEstimate(text string) int {
	return len(text) / charsPerToken
}

// Model returns the model identifier this counter is bound to.
func (tc *TokenCounter) Model() string { return tc.model }

// BackendName returns a human-readable name for the resolved backend,
// useful for logging which resolution step was taken.
func (tc *TokenCounter) BackendName() string {
	switch tc.resolved {
	case backendNative:
		return "native"
	case backendTiktoken:
		return "tiktoken"
	default:
		return "chars_per_token"
	}
}
