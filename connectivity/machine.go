// Package connectivity owns the gateway's uplink mode. The machine mirrors
// the dual-mode behavior of the field hardware: try the direct uplink with a
// bounded timeout, fall back to local-only service, and keep retrying on a
// fixed interval without ever blocking the tick loop.
package connectivity

import (
	"time"

	"github.com/eddielth/sensor-gateway/logger"
)

// State is the uplink mode
type State int

const (
	// StateInit is the startup state before any attempt
	StateInit State = iota
	// StateConnecting means a direct uplink attempt is in progress
	StateConnecting
	// StateOnline means the direct uplink is established
	StateOnline
	// StateLocalOnly means the gateway serves only local consumers
	StateLocalOnly
)

var stateNames = map[State]string{
	StateInit:       "INIT",
	StateConnecting: "CONNECTING",
	StateOnline:     "ONLINE",
	StateLocalOnly:  "LOCAL_ONLY",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

const (
	// ConnectTimeout bounds a direct uplink attempt
	ConnectTimeout = 10 * time.Second
	// ProbeInterval spaces reachability probes while online
	ProbeInterval = 10 * time.Second
	// RetryInterval spaces uplink retries while in local-only mode
	RetryInterval = 30 * time.Second
)

// Link abstracts the direct uplink. Connect begins a non-blocking attempt;
// Connected reports the current link status with at most a bounded check.
type Link interface {
	Connect() error
	Connected() bool
	Label() string
	Address() string
}

// Prober is a lightweight reachability check against a well-known endpoint
type Prober interface {
	Probe() bool
}

// Snapshot is the machine's externally visible state, re-derived every tick
type Snapshot struct {
	State             State
	UplinkLabel       string
	Address           string
	InternetConfirmed bool
}

// Machine drives the uplink state transitions. Update must be called from a
// single goroutine and never blocks beyond the prober's capped dial.
type Machine struct {
	link       Link
	prober     Prober
	localLabel string

	state             State
	internetConfirmed bool
	connectStart      time.Time
	lastProbe         time.Time
	lastRetry         time.Time
	retryStart        time.Time
	retrying          bool

	now func() time.Time
}

// NewMachine creates a machine in the initial state. localLabel names the
// local-only network the gateway falls back to.
func NewMachine(link Link, prober Prober, localLabel string) *Machine {
	return &Machine{
		link:       link,
		prober:     prober,
		localLabel: localLabel,
		state:      StateInit,
		now:        time.Now,
	}
}

// Start begins the first uplink attempt and advances out of the initial state
func (m *Machine) Start() {
	m.transition(StateConnecting, "starting uplink connection")
	m.connectStart = m.now()
	if err := m.link.Connect(); err != nil {
		logger.Warn("[connectivity] uplink connect request failed: %v", err)
	}
}

// Update advances the state machine by one tick
func (m *Machine) Update() {
	now := m.now()

	switch m.state {
	case StateInit:
		// Start has not been called yet

	case StateConnecting:
		if m.link.Connected() {
			m.transition(StateOnline, "uplink connected")
			m.runProbe(now)
			return
		}
		if now.Sub(m.connectStart) > ConnectTimeout {
			m.fallBack("uplink connect timeout", now)
		}

	case StateOnline:
		if !m.link.Connected() {
			m.fallBack("uplink lost", now)
			return
		}
		if now.Sub(m.lastProbe) >= ProbeInterval {
			m.runProbe(now)
		}

	case StateLocalOnly:
		if !m.retrying && now.Sub(m.lastRetry) >= RetryInterval {
			m.lastRetry = now
			m.retryStart = now
			m.retrying = true
			logger.Info("[connectivity] retrying uplink from local-only mode")
			if err := m.link.Connect(); err != nil {
				logger.Warn("[connectivity] uplink retry request failed: %v", err)
			}
		}
		if m.retrying {
			if m.link.Connected() {
				// Skip the connecting dwell: the link is already up
				m.retrying = false
				m.transition(StateOnline, "uplink reconnected from local-only mode")
				m.runProbe(now)
			} else if now.Sub(m.retryStart) > ConnectTimeout {
				m.retrying = false
				logger.Info("[connectivity] uplink retry timed out, staying local-only")
			}
		}
	}
}

// Snapshot returns the current externally visible state
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:             m.state,
		InternetConfirmed: m.internetConfirmed,
	}
	switch m.state {
	case StateOnline, StateConnecting:
		s.UplinkLabel = m.link.Label()
		s.Address = m.link.Address()
	case StateLocalOnly:
		s.UplinkLabel = m.localLabel
	}
	return s
}

// Online reports whether live sends may proceed
func (m *Machine) Online() bool {
	return m.state == StateOnline && m.internetConfirmed
}

// Label returns the tri-state status string used by local consumers.
// CONNECTING deliberately reports OFFLINE: the uplink is unusable until
// confirmed.
func (m *Machine) Label() string {
	switch {
	case m.state == StateLocalOnly:
		return "AP"
	case m.state == StateOnline && m.internetConfirmed:
		return "ONLINE"
	default:
		return "OFFLINE"
	}
}

// fallBack enters local-only mode; the next retry is a full interval away
func (m *Machine) fallBack(reason string, now time.Time) {
	m.transition(StateLocalOnly, reason)
	m.internetConfirmed = false
	m.retrying = false
	m.lastRetry = now
}

// runProbe refreshes the internet-confirmed flag. A failed probe never
// demotes the state: the physical link is still up.
func (m *Machine) runProbe(now time.Time) {
	m.lastProbe = now
	ok := m.prober.Probe()
	if ok != m.internetConfirmed {
		logger.Info("[connectivity] internet reachability changed: %v -> %v", m.internetConfirmed, ok)
	}
	m.internetConfirmed = ok
}

func (m *Machine) transition(next State, reason string) {
	if next == m.state {
		return
	}
	logger.Info("[connectivity] state transition: %s -> %s | reason: %s", m.state, next, reason)
	m.state = next
}
