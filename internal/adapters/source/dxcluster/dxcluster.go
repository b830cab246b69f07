// Package dxcluster implements the streaming source adapter for DX
// cluster telnet servers.
//
// The adapter owns a persistent TCP session driven by a background read
// loop: Disconnected -> Connecting -> LoggingIn -> Streaming, falling
// back to Disconnected on any stream error and reconnecting with
// exponential backoff. After login the session is strictly read-only;
// the only bytes ever written again are bare newline keepalives, so a
// misbehaving bot can never inject spurious spots into a shared cluster.
package dxcluster

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/okian/spotwatch/internal/adapters/source/buffer"
	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/logger"
	"github.com/okian/spotwatch/pkg/metrics"
)

// SourceName identifies this adapter in alerts and dedup records.
const SourceName = "dxcluster"

// Connection handling constants.
const (
	defaultAddr = "dxmaps.com:7300"

	connectTimeout      = 10 * time.Second
	readTimeout         = 30 * time.Second
	loginPromptAttempts = 20
	loginReadTimeout    = 1 * time.Second
	bannerReadTimeout   = 3 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute
)

// State is the connection state of the adapter session.
type State int32

// Session states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggingIn
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLoggingIn:
		return "logging_in"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Adapter maintains the cluster session and retains recent spots in a
// bounded buffer so fetches never touch the socket.
type Adapter struct {
	addr      string
	login     string
	log       logger.Logger
	buf       *buffer.Buffer
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration

	mu        sync.Mutex
	conn      net.Conn
	state     State
	loginDone bool // once true, no command is ever written again
	started   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an adapter. Start must be called before spots arrive.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		addr:      defaultAddr,
		now:       time.Now,
		state:     StateDisconnected,
		baseDelay: baseReconnectDelay,
		maxDelay:  maxReconnectDelay,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.Nop()
	}
	if a.buf == nil {
		a.buf = buffer.New(buffer.WithSource(SourceName))
	}

	return a
}

// Name returns the source name.
func (a *Adapter) Name() string { return SourceName }

// SupportedModes returns the full mode vocabulary; clusters carry
// everything.
func (a *Adapter) SupportedModes() []string { return model.AllModes() }

// Start launches the background session loop. Calling Start on a running
// adapter is a no-op.
func (a *Adapter) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.run(runCtx)
}

// run supervises connect/stream attempts until the context is cancelled.
// The backoff delay resets to base on every successful connect.
func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)

	delay := a.baseDelay
	for {
		if err := a.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.setState(StateDisconnected)
			metrics.RecordReconnect(SourceName)
			a.log.Warn(ctx, "connect failed, backing off",
				logger.String("addr", a.addr),
				logger.Duration("retry_in", delay),
				logger.Error(err))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = a.nextDelay(delay)
			continue
		}
		delay = a.baseDelay

		err := a.stream(ctx)
		a.closeConn()
		a.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		metrics.RecordReconnect(SourceName)
		a.log.Warn(ctx, "stream ended, reconnecting",
			logger.Duration("retry_in", delay),
			logger.Error(err))
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = a.nextDelay(delay)
	}
}

func (a *Adapter) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > a.maxDelay {
		d = a.maxDelay
	}
	return d
}

// sleepCtx waits d, returning false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// connect opens the TCP session and performs the login handshake.
func (a *Adapter) connect(ctx context.Context) error {
	a.setState(StateConnecting)
	a.log.Info(ctx, "connecting", logger.String("addr", a.addr))

	dialer := &net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", a.addr)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.loginDone = false
	a.mu.Unlock()

	if err := a.performLogin(ctx, conn); err != nil {
		a.closeConn()
		return err
	}

	a.log.Info(ctx, "connected", logger.String("addr", a.addr))
	return nil
}

// performLogin waits for the login prompt, writes the callsign and
// discards the welcome banner. When it returns, the session is read-only
// for good: no further command will ever be written on this connection.
func (a *Adapter) performLogin(ctx context.Context, conn net.Conn) error {
	a.setState(StateLoggingIn)

	if a.login == "" {
		a.log.Warn(ctx, "no login callsign configured, skipping login")
		a.mu.Lock()
		a.loginDone = true
		a.mu.Unlock()
		return nil
	}

	chunk := make([]byte, 1024)
	for i := 0; i < loginPromptAttempts; i++ {
		_ = conn.SetReadDeadline(a.now().Add(loginReadTimeout))
		n, err := conn.Read(chunk)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Assume the prompt was already sent and proceed.
				break
			}
			return err
		}
		if strings.Contains(strings.ToLower(string(chunk[:n])), "login:") {
			break
		}
	}

	if _, err := conn.Write([]byte(a.login + "\r\n")); err != nil {
		return err
	}
	a.log.Info(ctx, "sent login callsign", logger.String("callsign", a.login))

	// Read and discard the welcome banner, then lock the session to
	// read-only.
	_ = conn.SetReadDeadline(a.now().Add(bannerReadTimeout))
	_, _ = conn.Read(chunk)

	a.mu.Lock()
	a.loginDone = true
	a.mu.Unlock()
	a.log.Info(ctx, "login complete, session is now read-only")
	return nil
}

// stream reads newline-delimited text until the connection dies. An idle
// read timeout triggers a bare-newline keepalive, which is the only
// write permitted after login.
func (a *Adapter) stream(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}

	a.setState(StateStreaming)
	reader := bufio.NewReader(conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_ = conn.SetReadDeadline(a.now().Add(readTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Idle link; a bare newline keeps it alive without
				// sending a command.
				if _, werr := conn.Write([]byte("\r\n")); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		a.handleLine(ctx, strings.TrimRight(line, "\r\n"))
	}
}

// handleLine classifies one received line and buffers it if it parses as
// a spot. Unparseable spot-marker lines are dropped silently.
func (a *Adapter) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if skipLine(line) {
		return
	}
	if !strings.HasPrefix(line, "DX de") {
		return
	}

	spot, ok := parseSpotLine(line, a.now().UTC())
	if !ok {
		metrics.RecordParseError(SourceName)
		a.log.Debug(ctx, "dropped unparseable spot line", logger.String("line", line))
		return
	}

	a.buf.Append(spot)
	metrics.RecordSpotIngested(SourceName)
}

// FetchRecent serves spots from the buffer; it never blocks on the
// socket.
func (a *Adapter) FetchRecent(_ context.Context, since time.Time) ([]model.Spot, error) {
	return a.buf.Since(since), nil
}

// RecentSpots returns the newest count buffered spots, newest first.
// Non-destructive; used by display tooling.
func (a *Adapter) RecentSpots(count int) []model.Spot {
	return a.buf.Recent(count)
}

// TestConnection reports whether the session is currently streaming.
func (a *Adapter) TestConnection(_ context.Context) bool {
	return a.CurrentState() == StateStreaming
}

// CurrentState returns the session state.
func (a *Adapter) CurrentState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Adapter) closeConn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}

// Close cancels the session loop, closes the socket and waits for the
// read goroutine to exit. Idempotent.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	cancel := a.cancel
	a.started = false
	a.cancel = nil
	a.mu.Unlock()

	if !started {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	a.closeConn()

	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
