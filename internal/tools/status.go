package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/creative-orchestrator/internal/taskstore"
)

// Sentinel strings returned when a task has no result yet. Callers treat
// them as plain answers, never as errors.
const (
	SentinelProcessing = "Task is processing."
	SentinelNotFound   = "Task not found."
	SentinelNoURL      = "Task succeeded but no result URL found."
)

// StatusFailure is an explicit non-success state reported by a backend.
type StatusFailure struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Resolution is the outcome of a status query: exactly one of URL, Sentinel,
// or Failure is populated. None of the resolver paths raise.
type Resolution struct {
	URL      string
	Sentinel string
	Failure  *StatusFailure
}

// Resolved reports whether the query produced a usable result URL.
func (r Resolution) Resolved() bool { return r.URL != "" }

// RecordStore is the slice of the task store the resolver needs.
type RecordStore interface {
	Get(ctx context.Context, id string) (taskstore.Record, error)
}

// Resolver unifies status queries across the two async-job backends. The
// jobs API answers in a single shot; the task store backing the proxy path
// is polled with a bounded retry loop.
type Resolver struct {
	jobs  JobsAPI
	store RecordStore

	maxRetries    int
	delay         time.Duration
	graceAttempts int
	graceDelay    time.Duration

	sleep  func(time.Duration)
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

func WithPoll(maxRetries int, delay time.Duration, graceAttempts int, graceDelay time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.maxRetries = maxRetries
		r.delay = delay
		r.graceAttempts = graceAttempts
		r.graceDelay = graceDelay
	}
}

// WithSleep replaces the wait function; tests use it to count delays.
func WithSleep(sleep func(time.Duration)) ResolverOption {
	return func(r *Resolver) { r.sleep = sleep }
}

func NewResolver(jobs JobsAPI, store RecordStore, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		jobs:          jobs,
		store:         store,
		maxRetries:    60,
		delay:         2 * time.Second,
		graceAttempts: 3,
		graceDelay:    time.Second,
		sleep:         time.Sleep,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve queries the backend that owns the task, dispatched by the name of
// the capability that created it.
func (r *Resolver) Resolve(ctx context.Context, taskID, toolName string) Resolution {
	if IsProxyTool(toolName) {
		return r.resolveStored(ctx, taskID)
	}
	return r.resolveJob(ctx, taskID)
}

// resolveJob is the single-shot backend: one record query against the jobs
// API. Transport errors degrade to a structured failure.
func (r *Resolver) resolveJob(ctx context.Context, taskID string) Resolution {
	rec, err := r.jobs.RecordInfo(ctx, taskID)
	if errors.Is(err, ErrJobNotFound) {
		return Resolution{Sentinel: SentinelNotFound}
	}
	if err != nil {
		r.logger.Warn("job status query failed", "task_id", taskID, "error", err)
		return Resolution{Failure: &StatusFailure{Status: "error", Message: err.Error()}}
	}
	if rec.State == "success" {
		if len(rec.ResultURLs) > 0 {
			return Resolution{URL: rec.ResultURLs[0]}
		}
		return Resolution{Sentinel: SentinelNoURL}
	}
	return Resolution{Failure: &StatusFailure{Status: rec.State, Code: rec.FailCode, Message: rec.FailMsg}}
}

// resolveStored polls the keyed record backing the proxy path. A record
// missing on the first few attempts counts as "not yet written" and retries
// at the shorter grace delay; a record with an empty URL is still processing
// and retries at the full delay; exhausting every attempt yields the
// processing sentinel.
func (r *Resolver) resolveStored(ctx context.Context, taskID string) Resolution {
	if r.store == nil {
		return Resolution{Failure: &StatusFailure{Status: "unavailable", Message: "database unavailable"}}
	}
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		rec, err := r.store.Get(ctx, taskID)
		switch {
		case errors.Is(err, taskstore.ErrNotFound):
			// Not yet written. Early attempts retry quickly; afterwards the
			// record is assumed in flight and polled at the full delay.
			if attempt < r.graceAttempts {
				r.sleep(r.graceDelay)
			} else if attempt < r.maxRetries-1 {
				r.sleep(r.delay)
			}
			continue
		case err != nil:
			r.logger.Warn("task store query failed", "task_id", taskID, "attempt", attempt+1, "error", err)
			r.sleep(r.graceDelay)
			continue
		}
		if rec.URL != "" {
			return Resolution{URL: rec.URL}
		}
		if attempt < r.maxRetries-1 {
			r.sleep(r.delay)
		}
	}
	return Resolution{Sentinel: SentinelProcessing}
}
