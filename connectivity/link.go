package connectivity

import (
	"net"
	"time"
)

// linkCheckInterval rate-limits the dial behind DialLink.Connected so a busy
// tick loop cannot turn status checks into a dial storm.
const linkCheckInterval = 2 * time.Second

// DialLink is the production Link: it considers the uplink connected when a
// short, capped TCP dial to the uplink address succeeds. Results are cached
// between checks.
type DialLink struct {
	label   string
	addr    string
	timeout time.Duration

	attempting bool
	connected  bool
	lastCheck  time.Time

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
	now  func() time.Time
}

// NewDialLink creates a dial-based link check against addr (host:port)
func NewDialLink(label, addr string, timeout time.Duration) *DialLink {
	return &DialLink{
		label:   label,
		addr:    addr,
		timeout: timeout,
		dial:    net.DialTimeout,
		now:     time.Now,
	}
}

// Connect begins an attempt; for a dial-based link this just arms checking
func (l *DialLink) Connect() error {
	l.attempting = true
	l.lastCheck = time.Time{}
	return nil
}

// Connected performs at most one capped dial per check interval
func (l *DialLink) Connected() bool {
	if !l.attempting {
		return l.connected
	}
	now := l.now()
	if !l.lastCheck.IsZero() && now.Sub(l.lastCheck) < linkCheckInterval {
		return l.connected
	}
	l.lastCheck = now

	conn, err := l.dial("tcp", l.addr, l.timeout)
	if err != nil {
		l.connected = false
		return false
	}
	conn.Close()
	l.connected = true
	return true
}

// Label returns the uplink's human-readable name
func (l *DialLink) Label() string {
	return l.label
}

// Address reports the reachable uplink address when connected
func (l *DialLink) Address() string {
	if !l.connected {
		return ""
	}
	return l.addr
}

// TCPProbe is the production Prober: a capped TCP dial against a well-known
// external endpoint, typically a public DNS server on port 53.
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

// Probe reports whether the endpoint accepted a connection within the cap
func (p TCPProbe) Probe() bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	conn, err := net.DialTimeout("tcp", p.Addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
