// Package registry implements the ClusterRegistry component (spec §4.2): an
// in-memory table of federation members, a weighted cluster-selection
// scorer, and a periodic health-probe loop that fans out across every
// registered cluster in parallel using golang.org/x/sync/errgroup, the way
// the rest of this module uses errgroup for concurrent cluster fan-out
// (see internal/proxy).
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/wire"
	"golang.org/x/sync/errgroup"
)

// Prober is the health-check surface a registered cluster must satisfy.
// internal/cluster.Client implements it; tests substitute a fake.
type Prober interface {
	Heartbeat(ctx context.Context) (*wire.Capabilities, error)
	Close() error
}

// Priority is the selection-axis enum of spec §4.2.
type Priority string

const (
	PriorityLatency      Priority = "latency"
	PriorityCost         Priority = "cost"
	PriorityAvailability Priority = "availability"
	PriorityGPU          Priority = "gpu"
)

// Criteria is the hard-filter + scoring input of spec §4.2.
type Criteria struct {
	Priority              Priority
	MinAgents             int
	RequiresGPU           bool
	GPUType               string
	MaxLatencyMs          float64 // 0 = unbounded
	MaxCostPerHour        float64 // 0 = unbounded
	PreferredRegions      []string
	ExcludedRegions       []string
	RequiredCapabilityFlags []string
}

// HealthConfig tunes the periodic probe loop of spec §4.2.
type HealthConfig struct {
	Interval          time.Duration
	ProbeTimeout      time.Duration
	DegradedThreshold int
	OfflineThreshold  int
	AutoRemoveAfter   time.Duration // 0 disables auto-removal
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Interval:          5 * time.Second,
		ProbeTimeout:      2 * time.Second,
		DegradedThreshold: 3,
		OfflineThreshold:  5,
	}
}

type entry struct {
	cluster wire.Cluster
	health  wire.ClusterHealthState
	prober  Prober
	offlineSince time.Time
}

// Registry is the ClusterRegistry: single-writer-guarded cluster map plus
// health state, per spec §5's mutation discipline.
type Registry struct {
	mu      sync.Mutex
	order   []string // insertion order, used for stable tie-breaks
	entries map[string]*entry

	cfg    HealthConfig
	bus    *events.Bus
	logger *slog.Logger

	stopHealth chan struct{}
	healthDone chan struct{}
}

// New constructs an empty Registry. logger may be nil (slog.Default() is
// substituted).
func New(cfg HealthConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		cfg:     cfg,
		bus:     events.NewBus(),
		logger:  logger,
	}
}

// Subscribe registers handler for every cluster:*/health:* event the
// registry emits.
func (r *Registry) Subscribe(h events.Handler) (cancel func()) {
	return r.bus.Subscribe(h)
}

// Register adds or updates a cluster descriptor, validating id and
// endpoint and filling defaults, per spec §4.2. Registering an id that
// already exists updates it in place (idempotence law of spec §8).
func (r *Registry) Register(c wire.Cluster, prober Prober) (*wire.Cluster, error) {
	if c.ID == "" {
		return nil, wire.NewError(wire.ErrInvalidSpec, "cluster id is required")
	}
	if c.Region != wire.LocalRegion && c.Endpoint == "" {
		return nil, wire.NewError(wire.ErrInvalidSpec, "cluster endpoint is required")
	}
	if c.Status == "" {
		c.Status = wire.ClusterActive
	}
	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = time.Now()
	}

	r.mu.Lock()
	existing, ok := r.entries[c.ID]
	if ok {
		existing.cluster = c
		existing.prober = prober
		r.mu.Unlock()
		r.bus.Publish(events.New("cluster:updated", map[string]string{"clusterId": c.ID}))
		r.logger.Info("cluster updated", "cluster_id", c.ID)
		return &c, nil
	}

	e := &entry{
		cluster: c,
		prober:  prober,
		health: wire.ClusterHealthState{
			ClusterID: c.ID,
			Status:    c.Status,
		},
	}
	r.entries[c.ID] = e
	r.order = append(r.order, c.ID)
	r.mu.Unlock()

	r.bus.Publish(events.New("cluster:registered", map[string]string{"clusterId": c.ID}))
	r.logger.Info("cluster registered", "cluster_id", c.ID, "region", c.Region)
	return &c, nil
}

// Unregister closes the cluster's prober and removes its record. Returns
// false if the id was unknown (not an error, matching the idempotent
// kill/unregister style of spec §8).
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if e.prober != nil {
		_ = e.prober.Close()
	}
	r.bus.Publish(events.New("cluster:unregistered", map[string]string{"clusterId": id}))
	r.logger.Info("cluster unregistered", "cluster_id", id)
	return true
}

// Get returns a snapshot of one cluster's descriptor, or false if unknown.
func (r *Registry) Get(id string) (wire.Cluster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return wire.Cluster{}, false
	}
	return e.cluster, true
}

// Health returns a snapshot of one cluster's health record.
func (r *Registry) Health(id string) (wire.ClusterHealthState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return wire.ClusterHealthState{}, false
	}
	return e.health, true
}

// List returns a snapshot of every registered cluster in insertion order.
func (r *Registry) List() []wire.Cluster {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Cluster, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].cluster)
	}
	return out
}

// ByRegion returns every registered cluster whose region matches.
func (r *Registry) ByRegion(region string) []wire.Cluster {
	var out []wire.Cluster
	for _, c := range r.List() {
		if c.Region == region {
			out = append(out, c)
		}
	}
	return out
}

// ByStatus returns every registered cluster with the given status.
func (r *Registry) ByStatus(status wire.ClusterStatus) []wire.Cluster {
	var out []wire.Cluster
	for _, c := range r.List() {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// ByCapability returns every registered cluster with capability flag set
// true.
func (r *Registry) ByCapability(flag string) []wire.Cluster {
	var out []wire.Cluster
	for _, c := range r.List() {
		if c.Capabilities.Flags[flag] {
			out = append(out, c)
		}
	}
	return out
}

func meetsHardFilters(c wire.Cluster, crit Criteria) bool {
	if c.Status != wire.ClusterActive {
		return false
	}
	if c.Capabilities.AvailableAgents < crit.MinAgents {
		return false
	}
	if crit.RequiresGPU && !c.Capabilities.GPUEnabled {
		return false
	}
	if crit.GPUType != "" {
		found := false
		for _, t := range c.Capabilities.GPUTypes {
			if t == crit.GPUType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if crit.MaxLatencyMs > 0 && c.Capabilities.LatencyMs > crit.MaxLatencyMs {
		return false
	}
	if crit.MaxCostPerHour > 0 && c.Capabilities.CostPerHour > crit.MaxCostPerHour {
		return false
	}
	for _, excluded := range crit.ExcludedRegions {
		if c.Region == excluded {
			return false
		}
	}
	for _, flag := range crit.RequiredCapabilityFlags {
		if !c.Capabilities.Flags[flag] {
			return false
		}
	}
	return true
}

func isPreferred(region string, preferred []string) bool {
	for _, p := range preferred {
		if p == region {
			return true
		}
	}
	return false
}

// score implements the weighted-sum scorer of spec §4.2 step 2.
func score(c wire.Cluster, crit Criteria) float64 {
	latencyScore := max(0, 100-c.Capabilities.LatencyMs)
	costScore := max(0, 100-10*c.Capabilities.CostPerHour)
	maxAgents := c.Capabilities.MaxAgents
	if maxAgents < 1 {
		maxAgents = 1
	}
	availabilityScore := 100 * float64(c.Capabilities.AvailableAgents) / float64(maxAgents)

	var wLatency, wCost, wAvailability float64 = 0.3, 0.3, 0.3
	switch crit.Priority {
	case PriorityLatency:
		wLatency, wCost, wAvailability = 0.5, 0.3, 0.2
	case PriorityCost:
		wLatency, wCost, wAvailability = 0.3, 0.5, 0.2
	case PriorityAvailability:
		wLatency, wCost, wAvailability = 0.2, 0.3, 0.5
	}

	total := wLatency*latencyScore + wCost*costScore + wAvailability*availabilityScore

	gpuBonus := 0.0
	if c.Capabilities.GPUEnabled {
		gpuBonus = 10
	}
	if crit.Priority == PriorityGPU {
		gpuBonus *= 5
	}
	total += gpuBonus

	if isPreferred(c.Region, crit.PreferredRegions) {
		total += 15
	}
	return total
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Select implements spec §4.2's selection algorithm: filter to active
// clusters meeting every hard filter, score survivors, return the highest
// scorer with stable (insertion-order) tie-break. Returns nil if no
// cluster survives filtering, per spec §8's empty-registry boundary case.
func (r *Registry) Select(crit Criteria) *wire.Cluster {
	r.mu.Lock()
	candidates := make([]wire.Cluster, 0, len(r.order))
	for _, id := range r.order {
		candidates = append(candidates, r.entries[id].cluster)
	}
	r.mu.Unlock()

	type scored struct {
		c     wire.Cluster
		score float64
		idx   int
	}
	var survivors []scored
	for i, c := range candidates {
		if meetsHardFilters(c, crit) {
			survivors = append(survivors, scored{c, score(c, crit), i})
		}
	}
	if len(survivors) == 0 {
		return nil
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].idx < survivors[j].idx
	})
	best := survivors[0].c
	return &best
}

// StartHealthLoop launches the periodic probe loop of spec §4.2 in a
// goroutine. Call StopHealthLoop to stop it; Dispose calls it automatically.
func (r *Registry) StartHealthLoop(ctx context.Context) {
	r.mu.Lock()
	if r.stopHealth != nil {
		r.mu.Unlock()
		return
	}
	r.stopHealth = make(chan struct{})
	r.healthDone = make(chan struct{})
	stop := r.stopHealth
	done := r.healthDone
	r.mu.Unlock()

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthConfig().Interval
	}

	r.bus.Publish(events.New("health:started", nil))
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.bus.Publish(events.New("health:stopped", nil))
				return
			case <-stop:
				r.bus.Publish(events.New("health:stopped", nil))
				return
			case <-ticker.C:
				r.runHealthCycle(ctx)
			}
		}
	}()
}

// StopHealthLoop signals the health loop to exit and waits for it to do so.
func (r *Registry) StopHealthLoop() {
	r.mu.Lock()
	stop := r.stopHealth
	done := r.healthDone
	r.stopHealth = nil
	r.healthDone = nil
	r.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// runHealthCycle probes every registered cluster in parallel via errgroup,
// per spec §4.2/§4.A "in parallel" requirement, then applies the state
// machine transitions of spec §4.2 to each.
func (r *Registry) runHealthCycle(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			r.probeOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	r.bus.Publish(events.New("health:cycle_completed", map[string]string{"count": fmt.Sprintf("%d", len(ids))}))
}

func (r *Registry) probeOne(ctx context.Context, id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.prober == nil {
		r.mu.Unlock()
		return
	}
	prober := e.prober
	r.mu.Unlock()

	timeout := r.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultHealthConfig().ProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	caps, err := prober.Heartbeat(probeCtx)
	cancel()
	latency := float64(time.Since(start).Milliseconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.entries[id]
	if !ok {
		return
	}
	oldStatus := e.cluster.Status
	if err != nil {
		e.health.ConsecutiveFailures++
		e.health.ConsecutiveSuccess = 0
		e.health.Message = err.Error()
		switch {
		case e.health.ConsecutiveFailures >= r.cfg.OfflineThreshold:
			e.cluster.Status = wire.ClusterOffline
			e.health.Status = wire.ClusterOffline
			if e.offlineSince.IsZero() {
				e.offlineSince = time.Now()
			}
		case e.health.ConsecutiveFailures >= r.cfg.DegradedThreshold:
			e.cluster.Status = wire.ClusterDegraded
			e.health.Status = wire.ClusterDegraded
		}
		r.publishStatusChange(id, oldStatus, e.cluster.Status)
		r.emitCheckFailed(id, err)

		if r.cfg.AutoRemoveAfter > 0 && e.cluster.Status == wire.ClusterOffline && !e.offlineSince.IsZero() {
			if time.Since(e.offlineSince) > r.cfg.AutoRemoveAfter {
				prober := e.prober
				delete(r.entries, id)
				for i, oid := range r.order {
					if oid == id {
						r.order = append(r.order[:i], r.order[i+1:]...)
						break
					}
				}
				if prober != nil {
					_ = prober.Close()
				}
				r.logger.Info("cluster auto-removed after offline threshold", "cluster_id", id)
			}
		}
		return
	}

	e.health.ConsecutiveSuccess++
	e.health.ConsecutiveFailures = 0
	e.health.LastHeartbeat = time.Now()
	e.health.LastLatencyMs = latency
	e.health.Message = ""
	e.offlineSince = time.Time{}
	if caps != nil {
		e.cluster.Capabilities = *caps
		e.cluster.Capabilities.LatencyMs = latency
	} else {
		e.cluster.Capabilities.LatencyMs = latency
	}
	e.cluster.LastHeartbeat = e.health.LastHeartbeat

	if latency > float64(timeout.Milliseconds())/2 {
		e.cluster.Status = wire.ClusterDegraded
		e.health.Status = wire.ClusterDegraded
	} else {
		e.cluster.Status = wire.ClusterActive
		e.health.Status = wire.ClusterActive
	}
	r.publishStatusChange(id, oldStatus, e.cluster.Status)
	r.bus.Publish(events.New("health:checked", map[string]string{"clusterId": id}))
}

func (r *Registry) publishStatusChange(id string, old, new wire.ClusterStatus) {
	if old == new {
		return
	}
	r.bus.Publish(events.New("cluster:status_changed", map[string]string{
		"clusterId": id,
		"oldStatus": string(old),
		"newStatus": string(new),
	}))
	r.logger.Info("cluster status changed", "cluster_id", id, "old", old, "new", new)
}

func (r *Registry) emitCheckFailed(id string, err error) {
	r.bus.Publish(events.New("health:check_failed", map[string]string{
		"clusterId": id,
		"error":     err.Error(),
	}))
}

// Dispose stops the health loop and closes every registered prober,
// draining them synchronously, per spec §9's disposal contract for global
// registries.
func (r *Registry) Dispose() {
	r.StopHealthLoop()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.prober != nil {
			_ = e.prober.Close()
		}
	}
	r.entries = make(map[string]*entry)
	r.order = nil
}
