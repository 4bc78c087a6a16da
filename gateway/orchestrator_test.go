package gateway

import (
	"testing"
	"time"
)

// fakeStore records operations; slot handles are slice indices
type fakeStore struct {
	readings []Reading
	synced   []bool
}

func (s *fakeStore) Insert(r Reading) int {
	s.readings = append(s.readings, r)
	s.synced = append(s.synced, false)
	return len(s.readings) - 1
}

func (s *fakeStore) NextUnsynced() (Reading, int, bool) {
	for i, done := range s.synced {
		if !done {
			return s.readings[i], i, true
		}
	}
	return Reading{}, 0, false
}

func (s *fakeStore) MarkSynced(i int) { s.synced[i] = true }
func (s *fakeStore) Count() int       { return len(s.readings) }
func (s *fakeStore) Full() bool       { return false }
func (s *fakeStore) ActiveSenderCount(time.Duration) int {
	return len(s.readings)
}

func (s *fakeStore) syncedCount() int {
	n := 0
	for _, done := range s.synced {
		if done {
			n++
		}
	}
	return n
}

type fakeUplink struct {
	online  bool
	updates int
}

func (u *fakeUplink) Update()      { u.updates++ }
func (u *fakeUplink) Online() bool { return u.online }
func (u *fakeUplink) Label() string {
	if u.online {
		return "ONLINE"
	}
	return "OFFLINE"
}

type fakeClient struct {
	reachable    bool
	sent         []Reading
	failFromSend int // 1-based index of first send to fail; 0 = never
	statusPushes int
	healthChecks int
}

func (c *fakeClient) SendReading(r Reading) bool {
	c.sent = append(c.sent, r)
	if c.failFromSend > 0 && len(c.sent) >= c.failFromSend {
		return false
	}
	return true
}

func (c *fakeClient) SendStatus(string, int, string, bool) bool {
	c.statusPushes++
	return true
}

func (c *fakeClient) CheckHealth() bool { c.healthChecks++; return c.reachable }
func (c *fakeClient) Reachable() bool   { return c.reachable }

type fakeReceiver struct {
	queue   []Reading
	handler func(Reading)
}

func (r *fakeReceiver) Poll() {
	if len(r.queue) == 0 {
		return
	}
	reading := r.queue[0]
	r.queue = r.queue[1:]
	r.handler(reading)
}

func testOrchestrator(online, reachable bool) (*Orchestrator, *fakeStore, *fakeUplink, *fakeClient, *time.Time) {
	store := &fakeStore{}
	uplink := &fakeUplink{online: online}
	client := &fakeClient{reachable: reachable}
	o := NewOrchestrator("gateway-01", store, uplink, client)
	now := time.Now()
	o.now = func() time.Time { return now }
	o.lastDrain = now
	o.lastStatus = now
	o.startedAt = now
	return o, store, uplink, client, &now
}

func reading(nodeID string) Reading {
	return Reading{NodeID: nodeID, Temperature: 20, Humidity: 50, SoilMoisture: 30, CapturedAt: time.Now()}
}

func TestReadingsAlwaysBuffered(t *testing.T) {
	o, store, _, client, _ := testOrchestrator(false, false)
	rec := &fakeReceiver{queue: []Reading{reading("n1"), reading("n2")}, handler: o.HandleReading}
	o.AddReceiver(rec)

	o.Tick()
	o.Tick()

	if store.Count() != 2 {
		t.Fatalf("buffered %d readings, want 2", store.Count())
	}
	// Offline: nothing goes out, everything stays unsynced
	if len(client.sent) != 0 {
		t.Fatalf("sent %d readings while offline, want 0", len(client.sent))
	}
	if store.syncedCount() != 0 {
		t.Fatal("entries marked synced without a send")
	}
}

func TestLiveSendMarksSynced(t *testing.T) {
	o, store, _, client, _ := testOrchestrator(true, true)
	rec := &fakeReceiver{queue: []Reading{reading("n1")}, handler: o.HandleReading}
	o.AddReceiver(rec)

	o.Tick()

	if len(client.sent) != 1 {
		t.Fatalf("sent %d readings, want 1 live send", len(client.sent))
	}
	if store.syncedCount() != 1 {
		t.Fatal("live-sent reading not marked synced")
	}
}

func TestLiveSendFailureLeavesReadingBuffered(t *testing.T) {
	o, store, _, client, _ := testOrchestrator(true, true)
	client.failFromSend = 1
	rec := &fakeReceiver{queue: []Reading{reading("n1")}, handler: o.HandleReading}
	o.AddReceiver(rec)

	o.Tick()

	if store.Count() != 1 {
		t.Fatal("reading lost on live-send failure")
	}
	if store.syncedCount() != 0 {
		t.Fatal("failed live send marked the entry synced")
	}
}

func TestDrainStopsOnFirstFailure(t *testing.T) {
	o, store, _, client, now := testOrchestrator(true, true)

	// Five buffered entries, none synced; the 3rd send this cycle fails
	for i := 0; i < 5; i++ {
		o.store.Insert(reading("n1"))
	}
	client.failFromSend = 3

	*now = now.Add(DrainInterval)
	o.Tick()

	if got := store.syncedCount(); got != 2 {
		t.Fatalf("synced entries = %d, want exactly 2 before the failed send", got)
	}
	if len(client.sent) != 3 {
		t.Fatalf("send attempts = %d, want 3 (drain stops on first failure)", len(client.sent))
	}
}

func TestDrainBatchCap(t *testing.T) {
	o, store, _, client, now := testOrchestrator(true, true)
	for i := 0; i < 8; i++ {
		o.store.Insert(reading("n1"))
	}

	*now = now.Add(DrainInterval)
	o.Tick()

	if got := store.syncedCount(); got != DrainBatch {
		t.Fatalf("synced entries = %d, want batch cap %d", got, DrainBatch)
	}

	// Next cycle picks up the rest
	*now = now.Add(DrainInterval)
	o.Tick()
	if got := store.syncedCount(); got != 8 {
		t.Fatalf("synced entries = %d after second cycle, want 8", got)
	}
	if len(client.sent) != 8 {
		t.Fatalf("send attempts = %d, want 8", len(client.sent))
	}
}

func TestDrainRespectsInterval(t *testing.T) {
	o, store, _, _, now := testOrchestrator(true, true)
	o.store.Insert(reading("n1"))

	*now = now.Add(DrainInterval / 2)
	o.Tick()
	if store.syncedCount() != 0 {
		t.Fatal("drain ran before the interval elapsed")
	}

	*now = now.Add(DrainInterval)
	o.Tick()
	if store.syncedCount() != 1 {
		t.Fatal("drain did not run after the interval elapsed")
	}
}

func TestDrainGatedOnReachability(t *testing.T) {
	o, store, _, client, now := testOrchestrator(true, false)
	o.store.Insert(reading("n1"))

	*now = now.Add(DrainInterval)
	o.Tick()

	if len(client.sent) != 0 || store.syncedCount() != 0 {
		t.Fatal("drain ran while the collector was unreachable")
	}
}

func TestStatusPushCadence(t *testing.T) {
	o, _, _, client, now := testOrchestrator(true, true)

	o.Tick()
	if client.statusPushes != 0 {
		t.Fatal("status pushed before the interval elapsed")
	}

	*now = now.Add(StatusInterval)
	o.Tick()
	if client.statusPushes != 1 {
		t.Fatalf("status pushes = %d, want 1", client.statusPushes)
	}

	// Not again until another interval passes
	o.Tick()
	if client.statusPushes != 1 {
		t.Fatalf("status pushes = %d, want still 1", client.statusPushes)
	}
}

func TestStatusSnapshot(t *testing.T) {
	o, _, uplink, client, now := testOrchestrator(true, true)
	o.store.Insert(reading("n1"))

	*now = now.Add(42 * time.Second)
	o.Tick()

	s := o.Status()
	if s.ConnectivityLabel != "ONLINE" {
		t.Fatalf("ConnectivityLabel = %q, want ONLINE", s.ConnectivityLabel)
	}
	if !s.Reachable {
		t.Fatal("Reachable = false")
	}
	if s.BufferedCount != 1 {
		t.Fatalf("BufferedCount = %d, want 1", s.BufferedCount)
	}
	if s.Uptime != 42 {
		t.Fatalf("Uptime = %d, want 42", s.Uptime)
	}

	uplink.online = false
	client.reachable = false
	o.Tick()
	s = o.Status()
	if s.ConnectivityLabel != "OFFLINE" || s.Reachable {
		t.Fatalf("snapshot did not track degradation: %+v", s)
	}
}

func TestTickDrivesCollaborators(t *testing.T) {
	o, _, uplink, client, _ := testOrchestrator(true, true)
	o.Tick()
	o.Tick()

	if uplink.updates != 2 {
		t.Fatalf("uplink updates = %d, want 2", uplink.updates)
	}
	if client.healthChecks != 2 {
		t.Fatalf("health checks = %d, want 2", client.healthChecks)
	}
}
