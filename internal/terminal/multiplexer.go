package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/cockpit/internal/auth"
	"github.com/Iron-Ham/cockpit/internal/errors"
	"github.com/Iron-Ham/cockpit/internal/logging"
	"github.com/Iron-Ham/cockpit/internal/project"
)

// DefaultSettleDelay is how long a project switch waits before initializing
// the incoming project's terminal, letting the outgoing view finish detaching.
const DefaultSettleDelay = 100 * time.Millisecond

// State is one project's position in the terminal lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateConnecting
	StateConnected
	StateDisconnected
)

// String returns a short name for the state, used in logs.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// APIClient is the slice of the project client the multiplexer needs to
// resolve the terminal endpoint.
type APIClient interface {
	Config(ctx context.Context) (*project.ServerConfig, error)
	BaseURL() string
}

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// MultiplexerConfig carries the multiplexer's collaborators.
type MultiplexerConfig struct {
	Client      APIClient
	Credentials *auth.Store
	Registry    *Registry
	Logger      *logging.Logger
	Scrollback  int
	SettleDelay time.Duration
	// RefitDelay coalesces resize bursts: only the last dimensions seen
	// within the window are forwarded. Zero forwards every resize.
	RefitDelay time.Duration
	Dialer     Dialer
}

// Multiplexer drives each project's terminal through its lifecycle: handle
// creation and reattachment, transport connect/disconnect, input and resize
// forwarding, and parking across project switches. At most one open transport
// exists per project; connect attempts while one is pending or open are
// rejected rather than queued.
type Multiplexer struct {
	mu          sync.Mutex
	client      APIClient
	credentials *auth.Store
	registry    *Registry
	dialer      Dialer
	logger      *logging.Logger
	scrollback  int
	settleDelay time.Duration
	refitDelay  time.Duration

	active  string
	handles map[string]*Handle
	states  map[string]State
	resizes map[string]*pendingResize
}

// pendingResize holds the latest dimensions of a coalesced resize burst.
type pendingResize struct {
	timer *time.Timer
	cols  int
	rows  int
}

// NewMultiplexer creates a Multiplexer from cfg. Client, Credentials, and
// Registry are required.
func NewMultiplexer(cfg MultiplexerConfig) (*Multiplexer, error) {
	if cfg.Client == nil {
		return nil, errors.NewValidationError("multiplexer requires an API client")
	}
	if cfg.Credentials == nil {
		return nil, errors.NewValidationError("multiplexer requires a credential store")
	}
	if cfg.Registry == nil {
		return nil, errors.NewValidationError("multiplexer requires a registry")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	scrollback := cfg.Scrollback
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Multiplexer{
		client:      cfg.Client,
		credentials: cfg.Credentials,
		registry:    cfg.Registry,
		dialer:      dialer,
		logger:      logger.WithComponent("terminal-mux"),
		scrollback:  scrollback,
		settleDelay: settle,
		refitDelay:  cfg.RefitDelay,
		handles:     make(map[string]*Handle),
		states:      make(map[string]State),
		resizes:     make(map[string]*pendingResize),
	}, nil
}

// State returns the project's current lifecycle state.
func (m *Multiplexer) State(projectName string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[projectName]
}

// Handle returns the project's terminal handle, if one exists.
func (m *Multiplexer) Handle(projectName string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[projectName]
	return h, ok
}

// Initialize mounts the project's terminal: a parked handle is reattached
// when still usable, otherwise a fresh one is created. Disposed or stale
// handles are discarded silently. The resulting record is registered with
// the handle's actual connection state.
func (m *Multiplexer) Initialize(projectName, projectPath string) (*Handle, error) {
	if projectName == "" {
		return nil, errors.NewValidationError("project name is required")
	}

	m.mu.Lock()
	m.states[projectName] = StateInitializing
	m.active = projectName

	h, ok := m.handles[projectName]
	if ok && (h.Disposed() || h.ProjectPath() != projectPath) {
		// Stale parked handle: wrong path or already torn down.
		delete(m.handles, projectName)
		h, ok = nil, false
	}
	reattached := ok
	if !ok {
		h = newHandle(projectName, projectPath, m.scrollback)
		m.handles[projectName] = h
	}

	connected := h.connected()
	if connected {
		m.states[projectName] = StateConnected
	} else {
		m.states[projectName] = StateIdle
	}
	m.mu.Unlock()

	m.registry.Register(projectName, projectPath, connected)
	m.logger.Debug("terminal initialized",
		"project", projectName, "reattached", reattached, "connected", connected)
	return h, nil
}

// Connect opens the project's terminal transport. It requires the bearer
// credential and an initialized, idle handle; attempts while a connect is
// pending or a transport is open are rejected. On open it sends the init
// frame and starts the read pump.
func (m *Multiplexer) Connect(ctx context.Context, projectName string) error {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	if !ok || h.Disposed() {
		m.mu.Unlock()
		return errors.NewTerminalError("connect", errors.ErrNotInitialized).WithProject(projectName)
	}
	switch m.states[projectName] {
	case StateConnecting:
		m.mu.Unlock()
		return errors.NewTerminalError("connect", errors.ErrAlreadyConnecting).WithProject(projectName)
	case StateConnected:
		m.mu.Unlock()
		return errors.NewTerminalError("connect", errors.ErrAlreadyConnected).WithProject(projectName)
	case StateUninitialized, StateInitializing:
		m.mu.Unlock()
		return errors.NewTerminalError("connect", errors.ErrNotInitialized).WithProject(projectName)
	}

	token := m.credentials.Token()
	if token == "" {
		m.mu.Unlock()
		return errors.NewTerminalError("connect", errors.ErrMissingCredential).WithProject(projectName)
	}
	m.states[projectName] = StateConnecting
	m.mu.Unlock()

	endpoint, err := m.resolveEndpoint(ctx)
	if err == nil {
		var conn *websocket.Conn
		conn, _, err = m.dialer.DialContext(ctx, dialURL(endpoint, token), nil)
		if err == nil {
			return m.finishConnect(projectName, h, conn)
		}
	}

	m.mu.Lock()
	m.states[projectName] = StateIdle
	m.mu.Unlock()
	m.logger.Warn("terminal connect failed", "project", projectName, "error", err)
	return errors.NewTerminalError("connect failed", err).WithProject(projectName).WithRetryable(true)
}

func (m *Multiplexer) finishConnect(projectName string, h *Handle, conn *websocket.Conn) error {
	h.attachConn(conn)

	if err := h.sendJSON(map[string]string{
		"type":        "init",
		"projectPath": h.ProjectPath(),
	}); err != nil {
		h.clearConn(conn)
		conn.Close()
		m.mu.Lock()
		m.states[projectName] = StateIdle
		m.mu.Unlock()
		return errors.NewTerminalError("init frame failed", err).WithProject(projectName).WithRetryable(true)
	}

	m.mu.Lock()
	m.states[projectName] = StateConnected
	m.mu.Unlock()
	m.registry.UpdateStatus(projectName, true)
	m.logger.Info("terminal connected", "project", projectName)

	go m.readPump(projectName, h, conn)
	return nil
}

// readPump drains transport frames into the handle until the connection
// closes, then runs the close-reset path.
func (m *Multiplexer) readPump(projectName string, h *Handle, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var frame struct {
			Type     string `json:"type"`
			Data     string `json:"data"`
			ExitCode *int   `json:"exitCode"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "output":
			if err := h.Feed([]byte(frame.Data)); err != nil {
				conn.Close()
			}
		case "exit":
			code := 0
			if frame.ExitCode != nil {
				code = *frame.ExitCode
			}
			h.Feed([]byte(fmt.Sprintf("\r\nProcess exited with code %d\r\n", code)))
			conn.Close()
		}
	}

	m.onClosed(projectName, h, conn)
}

// onClosed returns the project to Idle after its transport drops: the
// transport reference is cleared, the screen is reset, and the registry
// publishes disconnected.
func (m *Multiplexer) onClosed(projectName string, h *Handle, conn *websocket.Conn) {
	h.clearConn(conn)
	h.Reset()

	m.mu.Lock()
	if m.states[projectName] == StateConnected || m.states[projectName] == StateConnecting {
		m.states[projectName] = StateIdle
	}
	m.mu.Unlock()

	m.registry.UpdateStatus(projectName, false)
	m.logger.Info("terminal disconnected", "project", projectName)
}

// Disconnect closes the project's transport. Already-disconnected projects
// are a no-op; cleanup runs on the read pump's exit path.
func (m *Multiplexer) Disconnect(projectName string) {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	m.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Restart tears down the project's handle and builds a fresh one. It is
// rejected while a transport is open; disconnect first.
func (m *Multiplexer) Restart(projectName string) (*Handle, error) {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	if !ok {
		m.mu.Unlock()
		return nil, errors.NewTerminalError("restart", errors.ErrNotInitialized).WithProject(projectName)
	}
	if m.states[projectName] == StateConnected || m.states[projectName] == StateConnecting {
		m.mu.Unlock()
		return nil, errors.NewTerminalError("restart", errors.ErrRestartWhileConnected).WithProject(projectName)
	}
	delete(m.handles, projectName)
	path := h.ProjectPath()
	m.mu.Unlock()

	h.Dispose()
	return m.Initialize(projectName, path)
}

// SendInput forwards keystrokes to the project's shell. Input is dropped
// with an error unless the transport is open.
func (m *Multiplexer) SendInput(projectName, data string) error {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	connected := ok && m.states[projectName] == StateConnected
	m.mu.Unlock()

	if !ok {
		return errors.NewTerminalError("input", errors.ErrNotInitialized).WithProject(projectName)
	}
	if !connected {
		return errors.NewTerminalError("input", errors.ErrNotInitialized).WithProject(projectName)
	}
	return h.sendJSON(map[string]string{"type": "input", "data": data})
}

// Resize refits the project's screen and, while the transport is open,
// forwards the new dimensions to the shell. With a refit delay configured,
// bursts are coalesced and only the final dimensions are sent.
func (m *Multiplexer) Resize(projectName string, cols, rows int) error {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	connected := ok && m.states[projectName] == StateConnected
	m.mu.Unlock()

	if !ok {
		return errors.NewTerminalError("resize", errors.ErrNotInitialized).WithProject(projectName)
	}
	if err := h.Resize(cols, rows); err != nil {
		return err
	}
	if !connected {
		return nil
	}
	if m.refitDelay <= 0 {
		return h.sendJSON(map[string]any{"type": "resize", "cols": cols, "rows": rows})
	}
	m.scheduleResize(projectName, h, cols, rows)
	return nil
}

// scheduleResize arms (or re-arms) the project's refit timer with the latest
// dimensions; the frame goes out once the burst settles.
func (m *Multiplexer) scheduleResize(projectName string, h *Handle, cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.resizes[projectName]; ok {
		p.cols, p.rows = cols, rows
		p.timer.Reset(m.refitDelay)
		return
	}

	p := &pendingResize{cols: cols, rows: rows}
	p.timer = time.AfterFunc(m.refitDelay, func() {
		m.mu.Lock()
		cols, rows := p.cols, p.rows
		delete(m.resizes, projectName)
		connected := m.states[projectName] == StateConnected
		m.mu.Unlock()

		if !connected {
			return
		}
		if err := h.sendJSON(map[string]any{"type": "resize", "cols": cols, "rows": rows}); err != nil {
			m.logger.Debug("deferred resize failed", "project", projectName, "error", err)
		}
	})
	m.resizes[projectName] = p
}

// Switch parks the active project's handle and initializes the incoming
// project after the settle delay. The parked transport stays open so a later
// reattach resumes it; a parked handle without one is marked disconnected.
func (m *Multiplexer) Switch(projectName, projectPath string) (*Handle, error) {
	m.mu.Lock()
	prev := m.active
	if prev != "" && prev != projectName {
		if h, ok := m.handles[prev]; ok && !h.connected() {
			m.states[prev] = StateDisconnected
		}
	}
	settle := m.settleDelay
	m.mu.Unlock()

	if prev != "" && prev != projectName {
		m.registry.UpdateStatus(prev, m.handleConnected(prev))
		time.Sleep(settle)
	}
	return m.Initialize(projectName, projectPath)
}

func (m *Multiplexer) handleConnected(projectName string) bool {
	m.mu.Lock()
	h, ok := m.handles[projectName]
	m.mu.Unlock()
	return ok && h.connected()
}

// Shutdown disposes every handle and closes any open transports.
func (m *Multiplexer) Shutdown() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	for _, p := range m.resizes {
		p.timer.Stop()
	}
	m.handles = make(map[string]*Handle)
	m.states = make(map[string]State)
	m.resizes = make(map[string]*pendingResize)
	m.active = ""
	m.mu.Unlock()

	for _, h := range handles {
		h.Dispose()
	}
}

// resolveEndpoint returns the websocket base for terminal transports. The
// server's advertised wsUrl wins unless it points at loopback while the API
// itself does not, in which case (and on lookup failure) the endpoint is
// derived from the API base URL.
func (m *Multiplexer) resolveEndpoint(ctx context.Context) (string, error) {
	base, err := url.Parse(m.client.BaseURL())
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	derived := derivedWsBase(base)

	cfg, err := m.client.Config(ctx)
	if err != nil {
		m.logger.Debug("config lookup failed, deriving terminal endpoint", "error", err)
		return derived, nil
	}

	wsBase := cfg.WsURL
	if strings.Contains(wsBase, "localhost") && !isLoopbackHost(base.Hostname()) {
		return derived, nil
	}
	return wsBase, nil
}

func derivedWsBase(base *url.URL) string {
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + base.Host
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func dialURL(wsBase, token string) string {
	return wsBase + "/terminal?token=" + url.QueryEscape(token)
}
