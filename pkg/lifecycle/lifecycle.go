// Package lifecycle coordinates startup and shutdown of long-lived subsystems.
// Hooks are named so a stalled shutdown can report which subsystem failed to drain.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when shutdown hooks outlive the timeout.
var ErrShutdownTimeout = errors.New("shutdown timeout")

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup

	mu      sync.Mutex
	ready   bool
	pending map[string]int
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]int),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently. Ready reports true once every startup
// hook has returned and WaitForStartup has been called.
func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown runs fn concurrently. Hooks block on <-c.Context().Done()
// before cleaning up. name identifies the hook if shutdown times out.
func (c *Coordinator) OnShutdown(name string, fn func()) {
	c.mu.Lock()
	c.pending[name]++
	c.mu.Unlock()

	c.shutdown.Go(func() {
		defer c.done(name)
		fn()
	})
}

func (c *Coordinator) done(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[name]--; c.pending[name] <= 0 {
		delete(c.pending, name)
	}
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

// Pending lists the shutdown hooks that have not returned, sorted by name.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.pending))
	for name := range c.pending {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within timeout. On timeout the error names the hooks still running.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v: waiting on %v", ErrShutdownTimeout, timeout, c.Pending())
	}
}
