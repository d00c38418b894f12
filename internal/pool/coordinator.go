package pool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Coordinator is the distributed backend as seen from rank 0. It owns the
// unit queue and serves it over TCP to workers on the other ranks; the
// coordinator itself renders nothing. Workers find the listener through the
// rendezvous file, pull one unit at a time, and ack each result, so a slow
// rank simply pulls less.
type Coordinator struct {
	log        *slog.Logger
	ln         net.Listener
	addr       string
	rendezvous string

	mu       sync.Mutex
	queue    []Unit
	pending  map[int]Unit
	draining bool
	sum      Summary
	conns    map[net.Conn]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCoordinator listens on bind (":0" picks a free port), writes the
// rendezvous file, and starts accepting workers. The advertised address uses
// the node's hostname when bind is a wildcard, so sibling ranks can reach it.
func NewCoordinator(log *slog.Logger, bind string) (*Coordinator, error) {
	if bind == "" {
		bind = ":0"
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		log:        log,
		ln:         ln,
		addr:       advertiseAddr(ln.Addr().String()),
		rendezvous: coordPath(),
		pending:    make(map[int]Unit),
		conns:      make(map[net.Conn]struct{}),
	}
	if err := c.writeRendezvous(); err != nil {
		ln.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.accept()
	c.log.Debug("coordinator listening", "addr", c.addr, "rendezvous", c.rendezvous)
	return c, nil
}

// Addr is the address workers are told to dial.
func (c *Coordinator) Addr() string { return c.addr }

// Submit queues one unit for whichever worker asks next.
func (c *Coordinator) Submit(_ context.Context, u Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, u)
}

// Drain closes the queue to refills and waits until every unit has been
// handed out and acked. When ctx expires first the partial summary comes
// back with ErrDrainTimeout or the cancellation cause.
func (c *Coordinator) Drain(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			c.mu.Lock()
			done := len(c.queue) == 0 && len(c.pending) == 0
			sum := c.sum
			c.mu.Unlock()
			if done {
				return sum, nil
			}
		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				err = ErrDrainTimeout
			}
			return c.snapshot(), err
		}
	}
}

// Close tears down the listener, drops live worker connections, and removes
// the rendezvous file. Workers treat the lost connection as end of batch.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.ln.Close()
		c.mu.Lock()
		for conn := range c.conns {
			conn.Close()
		}
		c.mu.Unlock()
		os.Remove(c.rendezvous)
		c.wg.Wait()
	})
	return nil
}

func (c *Coordinator) accept() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.conns[conn] = struct{}{}
		c.mu.Unlock()
		c.wg.Add(1)
		go c.handle(conn)
	}
}

// handle speaks the line protocol with one worker. The exchange is serial:
// the worker holds at most one unit at a time, so a dropped connection can
// orphan at most that unit, which is then counted as failed.
func (c *Coordinator) handle(conn net.Conn) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.conns, conn)
		c.mu.Unlock()
		conn.Close()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	var held *Unit

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if held != nil {
				c.failLost(*held)
			}
			return
		}

		var resp response
		switch req.Op {
		case opNext:
			resp, held = c.next()
		case opDone:
			c.ack(req.ID, req.Err)
			held = nil
			resp = response{Op: opOK}
		default:
			c.log.Warn("unknown request from worker", "op", req.Op, "remote", conn.RemoteAddr())
			resp = response{Op: opOK}
		}

		if err := enc.Encode(resp); err != nil {
			if held != nil {
				c.failLost(*held)
			}
			return
		}
	}
}

// next pops a unit, or tells the worker to wait or exit.
func (c *Coordinator) next() (response, *Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		u := c.queue[0]
		c.queue = c.queue[1:]
		c.pending[u.ID] = u
		return response{Op: opUnit, Unit: &u}, &u
	}
	if c.draining {
		return response{Op: opExit}, nil
	}
	return response{Op: opWait}, nil
}

func (c *Coordinator) ack(id int, errStr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	if errStr != "" {
		c.sum.Failed++
		c.sum.Errors = append(c.sum.Errors, UnitError{Unit: u, Err: errors.New(errStr)})
		return
	}
	c.sum.Rendered++
}

func (c *Coordinator) failLost(u Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[u.ID]; !ok {
		return
	}
	delete(c.pending, u.ID)
	c.sum.Failed++
	c.sum.Errors = append(c.sum.Errors, UnitError{Unit: u, Err: errors.New("worker connection lost")})
	c.log.Warn("unit lost to a dropped worker", "unit", u.ID, "dump", u.Dump)
}

func (c *Coordinator) snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

func (c *Coordinator) writeRendezvous() error {
	tmp := c.rendezvous + ".tmp"
	if err := os.WriteFile(tmp, []byte(c.addr+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.rendezvous)
}

// advertiseAddr swaps a wildcard listen host for the node's hostname so the
// written address is dialable from other ranks.
func advertiseAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsUnspecified() {
		return listen
	}
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "127.0.0.1"
	}
	return net.JoinHostPort(name, port)
}
