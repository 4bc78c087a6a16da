package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/eddielth/sensor-gateway/logger"
	"github.com/eddielth/sensor-gateway/metrics"
)

const (
	// DrainInterval spaces backlog drain cycles
	DrainInterval = 5 * time.Second
	// DrainBatch caps the entries drained per cycle
	DrainBatch = 5
	// StatusInterval spaces gateway telemetry pushes
	StatusInterval = 30 * time.Second
	// ActiveWindow is the liveness window for the active-sender count
	ActiveWindow = 5 * time.Minute
)

// Store is the ring buffer as the orchestrator sees it
type Store interface {
	Insert(Reading) int
	NextUnsynced() (Reading, int, bool)
	MarkSynced(int)
	Count() int
	Full() bool
	ActiveSenderCount(time.Duration) int
}

// Uplink is the connectivity state machine as the orchestrator sees it
type Uplink interface {
	Update()
	Online() bool
	Label() string
}

// SyncClient pushes data to the remote collector
type SyncClient interface {
	SendReading(Reading) bool
	SendStatus(gatewayID string, activeNodeCount int, networkMode string, reachable bool) bool
	CheckHealth() bool
	Reachable() bool
}

// Poller is a transport receiver's tick entry point
type Poller interface {
	Poll()
}

// StatusSnapshot is the surface consumed by the display and the local API
type StatusSnapshot struct {
	ConnectivityLabel string `json:"connectivityLabel"`
	Reachable         bool   `json:"reachable"`
	BufferedCount     int    `json:"bufferedCount"`
	BufferFull        bool   `json:"bufferFull"`
	Uptime            int64  `json:"uptime"`
}

type pendingReading struct {
	reading Reading
	index   int
}

// Orchestrator drives receivers, store, connectivity, and sync client once
// per tick. Everything it touches executes on the single tick goroutine; the
// published status snapshot is the only cross-goroutine surface.
type Orchestrator struct {
	gatewayID string
	receivers []Poller
	store     Store
	uplink    Uplink
	client    SyncClient

	pendingLive []pendingReading
	lastDrain   time.Time
	lastStatus  time.Time
	startedAt   time.Time

	statusMu sync.RWMutex
	status   StatusSnapshot

	now func() time.Time
}

// NewOrchestrator wires the core together. Receivers must be registered
// afterwards with AddReceiver, once their handlers point at HandleReading.
func NewOrchestrator(gatewayID string, store Store, uplink Uplink, client SyncClient) *Orchestrator {
	now := time.Now()
	return &Orchestrator{
		gatewayID:  gatewayID,
		store:      store,
		uplink:     uplink,
		client:     client,
		lastDrain:  now,
		lastStatus: now,
		startedAt:  now,
		now:        time.Now,
	}
}

// AddReceiver registers a transport receiver for per-tick polling
func (o *Orchestrator) AddReceiver(r Poller) {
	o.receivers = append(o.receivers, r)
}

// HandleReading is the handler every receiver hands parsed readings to.
// The reading is buffered unconditionally so sender accounting stays correct
// whether or not a live send later succeeds.
func (o *Orchestrator) HandleReading(r Reading) {
	index := o.store.Insert(r)
	o.pendingLive = append(o.pendingLive, pendingReading{reading: r, index: index})
}

// Tick runs one iteration of the cooperative loop
func (o *Orchestrator) Tick() {
	o.uplink.Update()
	o.client.CheckHealth()

	for _, r := range o.receivers {
		r.Poll()
	}

	online := o.uplink.Online() && o.client.Reachable()

	// Live path: push the just-received readings; failures need no special
	// handling because everything is already buffered
	for _, p := range o.pendingLive {
		if !online {
			break
		}
		if o.client.SendReading(p.reading) {
			o.store.MarkSynced(p.index)
		}
	}
	o.pendingLive = o.pendingLive[:0]

	now := o.now()

	if online && now.Sub(o.lastDrain) >= DrainInterval {
		o.lastDrain = now
		o.drainBacklog()
	}

	if now.Sub(o.lastStatus) >= StatusInterval {
		o.lastStatus = now
		o.client.SendStatus(o.gatewayID, o.store.ActiveSenderCount(ActiveWindow), o.uplink.Label(), o.client.Reachable())
	}

	metrics.BufferedEntries.Set(float64(o.store.Count()))
	o.publishStatus(now)
}

// drainBacklog replays buffered readings oldest-first, stopping at the batch
// cap or on the first failed send: the impairment is assumed to persist and
// the next cycle retries.
func (o *Orchestrator) drainBacklog() {
	for i := 0; i < DrainBatch; i++ {
		reading, index, ok := o.store.NextUnsynced()
		if !ok {
			return
		}
		if !o.client.SendReading(reading) {
			logger.Warn("[gateway] backlog drain interrupted after %d entries, retrying next cycle", i)
			return
		}
		o.store.MarkSynced(index)
	}
}

// Status returns the latest published status snapshot. Safe to call from
// other goroutines.
func (o *Orchestrator) Status() StatusSnapshot {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Orchestrator) publishStatus(now time.Time) {
	s := StatusSnapshot{
		ConnectivityLabel: o.uplink.Label(),
		Reachable:         o.client.Reachable(),
		BufferedCount:     o.store.Count(),
		BufferFull:        o.store.Full(),
		Uptime:            int64(now.Sub(o.startedAt).Seconds()),
	}
	o.statusMu.Lock()
	o.status = s
	o.statusMu.Unlock()
}

// Run drives Tick until the context is cancelled
func (o *Orchestrator) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	logger.Info("[gateway] orchestrator running, tick interval %s", tickInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[gateway] orchestrator stopped")
			return
		case <-ticker.C:
			o.Tick()
		}
	}
}
