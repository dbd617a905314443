// Package enclave provides a high-level façade over the agent core: the
// gateway, the completion backend, the audit log, the state store, the
// recurring-job runner, the task queue, the event bus and the handler
// registry. Most applications interact with this package by:
//  1. Creating a Core via New() around a completion.Completer
//  2. Registering handlers and background jobs
//  3. Calling ProcessRequest (directly or through the HTTP server)
//
// All defaults are safe for local development; production deployments supply
// their own store paths and a structured logger.
package enclave

import (
	"context"
	"fmt"
	"time"

	"github.com/adapsys/enclave/audit"
	"github.com/adapsys/enclave/bus"
	"github.com/adapsys/enclave/completion"
	"github.com/adapsys/enclave/fingerprint"
	"github.com/adapsys/enclave/gateway"
	"github.com/adapsys/enclave/logging"
	"github.com/adapsys/enclave/queue"
	"github.com/adapsys/enclave/registry"
	"github.com/adapsys/enclave/schedule"
	"github.com/adapsys/enclave/store"
)

// TopicHeartbeat carries the periodic liveness event published by Start.
const TopicHeartbeat = "heartbeat"

// Options configure the Core instance.
type Options struct {
	// Audit overrides the audit log. When nil, one is opened at LogDir.
	Audit *audit.Log
	// Store overrides the state store. When nil, a FileStore at StatePath.
	Store store.Store
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// LogDir is where the default audit log lives.
	LogDir string
	// StatePath is where the default state file lives.
	StatePath string

	// QueueWorkers sizes the task queue pool.
	QueueWorkers int
	// HeartbeatInterval spaces the heartbeat job started by Start.
	HeartbeatInterval time.Duration
}

// Core aggregates the agent core's components behind one construction site.
type Core struct {
	gateway   *gateway.Gateway
	log       *audit.Log
	store     store.Store
	bus       *bus.Bus
	queue     *queue.Queue
	registry  *registry.Registry
	scheduler *schedule.Runner
	logger    logging.Logger

	heartbeatInterval time.Duration
	heartbeat         *schedule.Job
}

// New creates a Core around the given completer with optional overrides. Any
// unset collaborator is initialized with its file-backed default.
func New(completer completion.Completer, optFns ...func(o *Options)) (*Core, error) {
	opts := Options{
		Logger:            logging.NoOpLogger{},
		LogDir:            "logs",
		StatePath:         "memory/memory.json",
		QueueWorkers:      2,
		HeartbeatInterval: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	log := opts.Audit
	if log == nil {
		var err error
		if log, err = audit.Open(opts.LogDir); err != nil {
			return nil, fmt.Errorf("enclave: open audit log: %w", err)
		}
	}

	st := opts.Store
	if st == nil {
		var err error
		if st, err = store.NewFileStore(opts.StatePath); err != nil {
			return nil, fmt.Errorf("enclave: open state store: %w", err)
		}
	}

	gw, err := gateway.New(completer, func(o *gateway.Options) {
		o.Audit = log
		o.Store = st
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	c := &Core{
		gateway:           gw,
		log:               log,
		store:             st,
		bus:               bus.New(func(o *bus.Options) { o.Logger = opts.Logger }),
		queue:             queue.New(func(o *queue.Options) { o.Workers = opts.QueueWorkers; o.Logger = opts.Logger }),
		registry:          registry.New(func(o *registry.Options) { o.Logger = opts.Logger }),
		scheduler:         schedule.NewRunner(func(o *schedule.Options) { o.Logger = opts.Logger }),
		logger:            opts.Logger,
		heartbeatInterval: opts.HeartbeatInterval,
	}
	c.registerBuiltins()
	return c, nil
}

func (c *Core) registerBuiltins() {
	c.registry.Register("fingerprint", "deterministic digest of args.text",
		func(_ context.Context, args map[string]any) (any, error) {
			text, ok := args["text"].(string)
			if !ok {
				return nil, fmt.Errorf("fingerprint: args.text must be a string")
			}
			return fingerprint.Text(text), nil
		})
}

// ProcessRequest services one textual request through the gateway.
func (c *Core) ProcessRequest(ctx context.Context, prompt string) (string, error) {
	return c.gateway.ProcessRequest(ctx, prompt)
}

// Heartbeat publishes the registered handler names on TopicHeartbeat once.
// The recurring job started by Start runs the same publish.
func (c *Core) Heartbeat() {
	c.bus.Publish(TopicHeartbeat, map[string]any{"modules": c.registry.List()})
}

// Start launches the background heartbeat, which publishes the registered
// handler names on TopicHeartbeat at the configured interval. Calling Start
// again restarts the heartbeat.
func (c *Core) Start(ctx context.Context) {
	if c.heartbeat != nil {
		c.heartbeat.Cancel()
	}
	c.heartbeat = c.scheduler.Every(ctx, "heartbeat", c.heartbeatInterval,
		func(context.Context) error {
			c.Heartbeat()
			return nil
		})
}

// Shutdown stops recurring jobs, drains the task queue, and closes the audit
// log. The ctx bounds how long the queue may take to drain.
func (c *Core) Shutdown(ctx context.Context) error {
	c.scheduler.Stop()
	if err := c.queue.Shutdown(ctx); err != nil {
		return err
	}
	return c.log.Close()
}

// Gateway returns the request orchestrator.
func (c *Core) Gateway() *gateway.Gateway { return c.gateway }

// Audit returns the audit log.
func (c *Core) Audit() *audit.Log { return c.log }

// Store returns the state store.
func (c *Core) Store() store.Store { return c.store }

// Bus returns the event bus.
func (c *Core) Bus() *bus.Bus { return c.bus }

// Queue returns the task queue.
func (c *Core) Queue() *queue.Queue { return c.queue }

// Registry returns the handler registry.
func (c *Core) Registry() *registry.Registry { return c.registry }

// Scheduler returns the recurring-job runner.
func (c *Core) Scheduler() *schedule.Runner { return c.scheduler }
