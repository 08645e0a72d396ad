// Package engine is the single actor goroutine that owns the keyspace,
// the TTL expiry heap, and the idle-connection list exclusively (spec
// §5's "all keyspace and connection state is owned by the event-loop
// task; no locks"). Connection goroutines never touch store.Keyspace,
// ttlqueue.Queue, or idlelist.List directly; they submit decoded
// requests over a channel and block for the reply, so the actor still
// processes commands one at a time, in the order each connection sent
// them, exactly as spec.md §5 requires.
//
// Grounded on the teacher's storage/queue.Queue.Start: a single
// goroutine in a for-select loop, computing its next timer duration
// from the earliest deadline in a priority structure and waking early
// on a buffered signal channel when new work arrives.
package engine

import (
	"context"
	"time"

	"kvcached/command"
	"kvcached/idlelist"
	"kvcached/store"
	"kvcached/ttlqueue"
	"kvcached/wire"
)

// pollCeiling bounds how long the actor ever sleeps, even with no TTL
// or idle deadlines pending (spec.md §4.H step 2's "a ceiling, e.g.
// 10s").
const pollCeiling = 10 * time.Second

// request is one decoded command awaiting execution by the actor.
type request struct {
	connID string
	args   []string
	reply  chan wire.Reply
}

// Closer is the minimal interface the actor needs to evict an idle
// connection; net.Conn and *conn.Conn both satisfy it.
type Closer interface {
	Close() error
}

// Engine is the keyspace/TTL/idle-list actor. Create with New, then
// run it on its own goroutine via Run.
type Engine struct {
	deps *command.Deps

	idle     *idlelist.List[string]
	idleNode map[string]*idlelist.Node[string]
	closer   map[string]Closer

	idleTimeoutMS int64
	startMS       int64
	connCount     int
	commandCount  int64

	requests  chan *request
	registerC chan registration
	unregistC chan string
	touchC    chan string

	evicted chan string
}

type registration struct {
	connID string
	closer Closer
	nowMS  int64
}

// Config bundles the engine's tunables.
type Config struct {
	IdleTimeoutMS  int64
	LegacySetReply bool
	NowMS          func() int64
}

// New creates an Engine. Call Run to start processing; nothing is
// safe to call before Run's goroutine is live except the channel-based
// methods below, which block until Run starts draining them.
func New(cfg Config) *Engine {
	nowMS := cfg.NowMS
	if nowMS == nil {
		nowMS = func() int64 { return time.Now().UnixMilli() }
	}
	e := &Engine{
		idle:          idlelist.New[string](),
		idleNode:      map[string]*idlelist.Node[string]{},
		closer:        map[string]Closer{},
		idleTimeoutMS: cfg.IdleTimeoutMS,
		startMS:       nowMS(),
		requests:      make(chan *request),
		registerC:     make(chan registration),
		unregistC:     make(chan string),
		touchC:        make(chan string),
		evicted:       make(chan string, 16),
	}
	e.deps = &command.Deps{
		Keyspace:       store.NewKeyspace(),
		TTL:            ttlqueue.New(),
		NowMS:          nowMS,
		LegacySetReply: cfg.LegacySetReply,
		Stats:          e.stats,
	}
	return e
}

// stats reports the engine-level INFO counters. Only ever invoked from
// within Run's goroutine (via command.Dispatch handling INFO), so no
// synchronization is needed despite the closure crossing into deps.
func (e *Engine) stats() command.ServerStats {
	return command.ServerStats{
		UptimeMS:          e.deps.NowMS() - e.startMS,
		Connections:       e.connCount,
		CommandsProcessed: e.commandCount,
	}
}

// RegisterConn adds connID to the idle list and remembers closer so
// the actor can evict it on idle timeout. Blocks until the actor
// accepts the registration.
func (e *Engine) RegisterConn(connID string, closer Closer) {
	e.registerC <- registration{connID: connID, closer: closer}
}

// UnregisterConn removes connID's idle-list bookkeeping. Call this
// when a connection's own goroutine is tearing it down, so the actor
// never tries to evict an already-closed connection.
func (e *Engine) UnregisterConn(connID string) {
	e.unregistC <- connID
}

// Touch refreshes connID's last-activity time, keeping it off the
// idle-eviction path. Call after every successful read or write.
func (e *Engine) Touch(connID string) {
	e.touchC <- connID
}

// Execute submits args for execution under connID and blocks for the
// reply. Safe to call from many connection goroutines concurrently;
// the actor serializes all keyspace access internally.
func (e *Engine) Execute(ctx context.Context, connID string, args []string) (wire.Reply, error) {
	req := &request{connID: connID, args: args, reply: make(chan wire.Reply, 1)}
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return wire.Reply{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return wire.Reply{}, ctx.Err()
	}
}

// Evicted returns a channel of connection ids the actor has closed for
// idle timeout (it calls the registered Closer itself). Sends are
// non-blocking: once the 16-slot buffer is full, further ids are
// dropped. bin/cacheserver drains it to log evictions.
func (e *Engine) Evicted() <-chan string {
	return e.evicted
}

// Run drives the actor loop until ctx is canceled, at which point it
// actively closes every still-registered connection's socket (see
// closeRegistered) before returning, rather than leaving reader
// goroutines to notice cancellation only via their own blocking Read.
// Exactly one goroutine may call Run for a given Engine.
func (e *Engine) Run(ctx context.Context) {
	timer := time.NewTimer(pollCeiling)
	timer.Stop()
	defer timer.Stop()

	for {
		now := e.deps.NowMS()
		e.expireTTLs(now)
		e.evictIdle(now)

		sleep := e.nextSleep(now)
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			drainTimer(timer)
			e.closeRegistered()
			return
		case req := <-e.requests:
			drainTimer(timer)
			e.touch(req.connID, e.deps.NowMS())
			e.commandCount++
			req.reply <- command.Dispatch(e.deps, req.args)
		case reg := <-e.registerC:
			drainTimer(timer)
			e.idleNode[reg.connID] = e.idle.PushBack(reg.connID, e.deps.NowMS())
			e.closer[reg.connID] = reg.closer
			e.connCount++
		case connID := <-e.unregistC:
			drainTimer(timer)
			if _, ok := e.idleNode[connID]; ok {
				e.connCount--
			}
			e.forget(connID)
		case connID := <-e.touchC:
			drainTimer(timer)
			e.touch(connID, e.deps.NowMS())
		case <-timer.C:
			// Wake up to recompute TTL/idle deadlines at the top of the
			// loop.
		}
	}
}

func (e *Engine) touch(connID string, nowMS int64) {
	if node, ok := e.idleNode[connID]; ok {
		e.idle.Touch(node, nowMS)
	}
}

// closeRegistered actively closes every connection still on the idle
// list on shutdown, rather than leaving their reader goroutines
// blocked on Read until -shutdown-timeout elapses. Safe to call here
// because Run never processes a request concurrently with ctx.Done
// firing, so no connection has a frame mid-dispatch at this point.
func (e *Engine) closeRegistered() {
	for connID, closer := range e.closer {
		if closer != nil {
			closer.Close()
		}
		delete(e.closer, connID)
	}
	e.idleNode = map[string]*idlelist.Node[string]{}
	e.idle = idlelist.New[string]()
}

func (e *Engine) forget(connID string) {
	if node, ok := e.idleNode[connID]; ok {
		e.idle.Remove(node)
		delete(e.idleNode, connID)
	}
	delete(e.closer, connID)
}

func (e *Engine) expireTTLs(now int64) {
	for _, key := range e.deps.TTL.PopDue(ttlqueue.DeadlineMS(now)) {
		e.deps.Keyspace.Delete(key)
	}
}

func (e *Engine) evictIdle(now int64) {
	for {
		node := e.idle.Front()
		if node == nil || now-node.LastActivity <= e.idleTimeoutMS {
			return
		}
		connID := node.Value
		closer := e.closer[connID]
		e.forget(connID)
		e.connCount--
		if closer != nil {
			closer.Close()
		}
		select {
		case e.evicted <- connID:
		default:
		}
	}
}

// nextSleep computes spec.md §4.H step 2: min(next TTL deadline, next
// idle deadline, ceiling) minus now, clamped to [0, ceiling].
func (e *Engine) nextSleep(now int64) time.Duration {
	sleep := pollCeiling

	if deadline, ok := e.deps.TTL.Peek(); ok {
		if d := time.Duration(int64(deadline)-now) * time.Millisecond; d < sleep {
			sleep = d
		}
	}
	if node := e.idle.Front(); node != nil {
		idleDeadline := node.LastActivity + e.idleTimeoutMS
		if d := time.Duration(idleDeadline-now) * time.Millisecond; d < sleep {
			sleep = d
		}
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

func drainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
