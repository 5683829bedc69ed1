// Package resolver answers prompts from taught memory, falling back to a
// remote completion endpoint and memoizing what it returns.
//
// Lookup order for a normalized prompt:
//  1. exact key match
//  2. fuzzy match: the stored key sharing the most space-separated tokens
//     with the prompt, provided it shares at least MinOverlap of them
//  3. one remote call; a successful reply is stored under the prompt
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/logger"
	"github.com/hession/teachmate/internal/memory"
	"golang.org/x/sync/singleflight"
)

// Fixed user-facing messages
const (
	PromptRequiredMessage = "Please provide a prompt."
	RemoteFailureMessage  = "Sorry, I couldn't fetch a response from the external API."
)

// DefaultMinOverlap is the fuzzy match threshold
const DefaultMinOverlap = 5

// ErrMissingField is returned by Teach when prompt or response is blank
var ErrMissingField = errors.New("prompt and response are both required")

// Source says how a Result was produced
type Source string

const (
	SourceRejected   Source = "rejected"
	SourceExact      Source = "exact"
	SourceFuzzy      Source = "fuzzy"
	SourceRemote     Source = "remote"
	SourceRemoteMiss Source = "remote_miss"
)

// Completer is the remote fallback
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result of a Resolve call
type Result struct {
	Response string
	Source   Source
	// Match is the stored key that answered a fuzzy hit
	Match string
}

// Resolver resolves prompts. Safe for concurrent use.
type Resolver struct {
	store      memory.Store
	remote     Completer
	history    *history.Log
	log        *logger.Logger
	minOverlap int
	dedupe     bool
	inflight   singleflight.Group
}

// Option resolver configuration option
type Option func(*Resolver)

// WithMinOverlap sets the fuzzy threshold; values below 1 are ignored
func WithMinOverlap(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.minOverlap = n
		}
	}
}

// WithDedupe makes concurrent misses for the same prompt share one remote call
func WithDedupe(enabled bool) Option {
	return func(r *Resolver) {
		r.dedupe = enabled
	}
}

// WithHistory sets the chat history log
func WithHistory(h *history.Log) Option {
	return func(r *Resolver) {
		r.history = h
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// New creates a Resolver over store with remote as fallback
func New(store memory.Store, remote Completer, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		remote:     remote,
		minOverlap: DefaultMinOverlap,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = history.New(1000)
	}
	return r
}

// Normalize trims and lower-cases prompt text
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve answers a raw prompt. It never returns an error: failures become
// fixed messages in the Result.
func (r *Resolver) Resolve(ctx context.Context, raw string) Result {
	prompt := Normalize(raw)
	if prompt == "" {
		return Result{Response: PromptRequiredMessage, Source: SourceRejected}
	}
	log := r.log.With("prompt", fmt.Sprintf("%q", prompt))
	log.Info("received prompt")

	r.history.AddPrompt(prompt)

	response, ok, err := r.store.Get(prompt)
	if err != nil {
		log.Warn("exact lookup failed, continuing: %v", err)
	}
	if ok {
		log.Info("exact match")
		r.history.AddResponse(response)
		return Result{Response: response, Source: SourceExact, Match: prompt}
	}

	entries, err := r.store.Entries()
	if err != nil {
		log.Warn("fuzzy lookup skipped: %v", err)
	}
	if match, count, ok := BestMatch(prompt, entries, r.minOverlap); ok {
		log.Info("close match %q (%d shared tokens)", match.Prompt, count)
		r.history.AddResponse(match.Response)
		return Result{Response: match.Response, Source: SourceFuzzy, Match: match.Prompt}
	}

	log.Info("no close match, querying remote")
	response, err = r.fetch(ctx, prompt)
	if err != nil {
		log.Error("remote completion failed: %v", err)
		return Result{Response: RemoteFailureMessage, Source: SourceRemoteMiss}
	}

	r.history.AddResponse(response)
	return Result{Response: response, Source: SourceRemote}
}

func (r *Resolver) fetch(ctx context.Context, prompt string) (string, error) {
	if !r.dedupe {
		return r.fetchAndStore(ctx, prompt)
	}

	// waiters must not lose the shared call when the first caller goes away
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.inflight.Do(prompt, func() (interface{}, error) {
		return r.fetchAndStore(shared, prompt)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) fetchAndStore(ctx context.Context, prompt string) (string, error) {
	response, err := r.remote.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	if err := r.store.Put(prompt, response); err != nil {
		r.log.Warn("learned %q from remote but could not persist it: %v", prompt, err)
	} else {
		r.log.Info("learned from remote: %q", prompt)
	}
	return response, nil
}

// Teach stores prompt -> response. The prompt is normalized, the response
// trimmed. The confirmation echoes the prompt as given.
func (r *Resolver) Teach(prompt, response string) (string, error) {
	key := Normalize(prompt)
	value := strings.TrimSpace(response)
	if key == "" || value == "" {
		return "", ErrMissingField
	}

	if err := r.store.Put(key, value); err != nil {
		r.log.Warn("learned %q but could not persist it: %v", key, err)
	} else {
		r.log.Info("learned: %q -> %q", key, value)
	}

	return fmt.Sprintf("Learned: \"%s\" -> \"%s\"", prompt, value), nil
}

// History returns the retained chat history, oldest first
func (r *Resolver) History() []history.Entry {
	return r.history.Entries()
}

// Memory returns the whole store in insertion order
func (r *Resolver) Memory() (memory.Snapshot, error) {
	entries, err := r.store.Entries()
	if err != nil {
		return nil, err
	}
	return memory.Snapshot(entries), nil
}
