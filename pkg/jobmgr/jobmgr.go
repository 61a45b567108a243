// Package jobmgr provides named background job execution with
// cancellation, status callbacks and in-memory tracking of running jobs.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	_ = jm.StartAsync(ctx, "node", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// on shutdown...
//	jm.StopAll()
//	jm.Wait()
//
// The package is intentionally minimal: no retry logic, no workers, no
// persistence. Jobs run in separate goroutines and are removed
// automatically on completion.
package jobmgr

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:node
//	error:node:connection refused
//	done:node
type StatusReporter func(string)

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a new Manager. The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		Reporter: reporter,
	}
}

// StartAsync runs a job in a separate goroutine and returns immediately.
// The job's context is derived from parent, so cancelling the parent
// stops every job. If a job with the same name is already running, an
// error is returned. Jobs are removed automatically after completion.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job '%s' is already running", name)
	}
	m.jobs[name] = &job{name: name, cancel: cancel}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.report("running:" + name)

		err := runner(ctx)
		if err != nil && ctx.Err() == nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()
		cancel()
	}()

	return nil
}

// Stop cancels a running job by name.
// If the job is not running, an error is returned.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, j := range m.jobs {
		j.cancel()
		delete(m.jobs, name)
	}
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// List returns the list of active job names.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	return out
}

// Status returns a human-readable summary of active jobs.
// Example:
//
//	"Running jobs: node, sweep"
//
// If none are running: "No jobs are running."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// report delivers lifecycle messages to the reporter if present.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
