package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrProcessClosed is returned when talking to a plugin process that has exited.
var ErrProcessClosed = errors.New("plugin process closed")

// NotificationBuffer is how many unsolicited plugin messages may queue.
// When it is full the oldest queued message is dropped.
const NotificationBuffer = 256

// shutdownGrace is how long Close waits for the plugin to exit on its own
// after stdin is closed.
const shutdownGrace = 2 * time.Second

// Process is a long-lived plugin speaking line-delimited JSON.
//
// Requests go to stdin, one per line. Responses come back on stdout with the
// request's ID. Lines with ID 0 are notifications and are delivered on
// Notifications().
type Process struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan Response
	closed  bool

	notes     chan Response
	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches the plugin executable and begins reading its output.
func Start(p *Plugin) (*Process, error) {
	cmd := exec.Command(p.Executable, p.Manifest.Args...)
	cmd.Dir = p.Path
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plugin %s: %w", p.Manifest.Name, err)
	}

	proc := Attach(p.Manifest.Name, stdin, stdout)
	proc.cmd = cmd

	log.Info().Str("plugin", p.Manifest.Name).Int("pid", cmd.Process.Pid).Msg("plugin started")
	return proc, nil
}

// Attach runs the protocol over an existing pipe pair. Start uses it for
// child processes; tests use it with in-memory pipes.
func Attach(name string, stdin io.WriteCloser, stdout io.Reader) *Process {
	p := &Process{
		name:    name,
		stdin:   stdin,
		pending: make(map[uint64]chan Response),
		notes:   make(chan Response, NotificationBuffer),
		done:    make(chan struct{}),
	}
	go p.readLoop(stdout)
	return p
}

// Name returns the plugin name.
func (p *Process) Name() string {
	return p.name
}

// Notifications returns the channel of unsolicited messages.
// It is closed when the plugin's stdout ends.
func (p *Process) Notifications() <-chan Response {
	return p.notes
}

// DroppedNotifications returns how many notifications were discarded
// because the queue was full.
func (p *Process) DroppedNotifications() uint64 {
	return p.dropped.Load()
}

// Done is closed once the plugin's stdout has ended.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Call sends a request and waits for the matching response or ctx expiry.
// A response that arrives after ctx expired is discarded.
func (p *Process) Call(ctx context.Context, action string, params any) (*Response, error) {
	id := p.nextID.Add(1)
	ch := make(chan Response, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProcessClosed
	}
	p.pending[id] = ch
	p.mu.Unlock()

	if err := p.write(id, action, params); err != nil {
		p.forget(id)
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrProcessClosed
		}
		if !resp.Success {
			return &resp, fmt.Errorf("plugin %s %s: %s", p.name, action, resp.Error)
		}
		return &resp, nil
	case <-ctx.Done():
		p.forget(id)
		return nil, fmt.Errorf("plugin %s %s: %w", p.name, action, ctx.Err())
	}
}

// Send writes a request without waiting for its response.
func (p *Process) Send(action string, params any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrProcessClosed
	}
	return p.write(p.nextID.Add(1), action, params)
}

func (p *Process) write(id uint64, action string, params any) error {
	req := Request{ID: id, Action: action}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	line = append(line, '\n')

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.stdin.Write(line); err != nil {
		return fmt.Errorf("write to plugin %s: %w", p.name, err)
	}
	return nil
}

func (p *Process) forget(id uint64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Process) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			log.Warn().Err(err).Str("plugin", p.name).Msg("ignoring malformed plugin output")
			continue
		}

		if resp.ID == 0 {
			p.notify(resp)
			continue
		}

		p.mu.Lock()
		ch, ok := p.pending[resp.ID]
		delete(p.pending, resp.ID)
		p.mu.Unlock()

		if ok {
			ch <- resp
		} else if !resp.Success {
			log.Debug().Str("plugin", p.name).Uint64("id", resp.ID).Str("error", resp.Error).Msg("plugin request failed")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Str("plugin", p.name).Msg("plugin output ended with error")
	}

	p.mu.Lock()
	p.closed = true
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.mu.Unlock()

	close(p.notes)
	close(p.done)
}

// notify queues resp, evicting the oldest queued notification while the
// queue is full so the latest state always reaches the consumer.
func (p *Process) notify(resp Response) {
	for {
		select {
		case p.notes <- resp:
			return
		default:
		}

		select {
		case old := <-p.notes:
			p.dropped.Add(1)
			log.Warn().Str("plugin", p.name).Str("event", old.Event).Msg("notification queue full, dropping oldest")
		default:
		}
	}
}

// Close closes the plugin's stdin and waits for it to exit, killing it if
// it does not stop within a short grace period.
func (p *Process) Close() error {
	var err error
	p.closeOnce.Do(func() {
		// Not under writeMu: closing stdin is what unblocks a writer stuck
		// on a plugin that stopped reading.
		p.stdin.Close()

		if p.cmd == nil {
			return
		}

		exited := make(chan error, 1)
		go func() { exited <- p.cmd.Wait() }()

		select {
		case err = <-exited:
		case <-time.After(shutdownGrace):
			log.Warn().Str("plugin", p.name).Msg("plugin did not exit, killing")
			p.cmd.Process.Kill()
			err = <-exited
		}
		log.Info().Str("plugin", p.name).Msg("plugin stopped")
	})
	return err
}
