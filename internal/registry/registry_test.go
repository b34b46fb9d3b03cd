package registry

import (
	"testing"

	"github.com/orbitctl/agentplane/internal/wire"
)

func cluster(id, region string, caps wire.Capabilities) wire.Cluster {
	return wire.Cluster{ID: id, Name: id, Endpoint: "localhost:1", Region: region, Status: wire.ClusterActive, Capabilities: caps}
}

func TestRegisterRequiresIDAndEndpoint(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	if _, err := r.Register(wire.Cluster{}, nil); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := r.Register(wire.Cluster{ID: "c1"}, nil); err == nil {
		t.Fatal("expected error for missing endpoint on a non-local cluster")
	}
}

func TestRegisterIsIdempotentOnDuplicateID(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	c := cluster("c1", "us-east", wire.Capabilities{MaxAgents: 10, AvailableAgents: 10})
	if _, err := r.Register(c, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.Region = "us-west"
	if _, err := r.Register(c, nil); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected exactly one registered cluster, got %d", len(r.List()))
	}
	got, _ := r.Get("c1")
	if got.Region != "us-west" {
		t.Fatalf("expected re-registration to update in place, got region %s", got.Region)
	}
}

func TestUnregisterUnknownIsFalseNotError(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	if r.Unregister("does-not-exist") {
		t.Fatal("expected Unregister of an unknown id to report false")
	}
}

func TestSelectReturnsNilWhenNoneSurvive(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	c := cluster("c1", "us-east", wire.Capabilities{MaxAgents: 10, AvailableAgents: 0})
	if _, err := r.Register(c, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := r.Select(Criteria{MinAgents: 1}); got != nil {
		t.Fatalf("expected nil selection, got %v", got)
	}
}

func TestSelectPrefersHigherAvailabilityUnderAvailabilityPriority(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	low := cluster("low", "us-east", wire.Capabilities{MaxAgents: 10, AvailableAgents: 1})
	high := cluster("high", "us-east", wire.Capabilities{MaxAgents: 10, AvailableAgents: 9})
	if _, err := r.Register(low, nil); err != nil {
		t.Fatalf("Register low: %v", err)
	}
	if _, err := r.Register(high, nil); err != nil {
		t.Fatalf("Register high: %v", err)
	}
	got := r.Select(Criteria{Priority: PriorityAvailability})
	if got == nil || got.ID != "high" {
		t.Fatalf("expected the high-availability cluster to win, got %v", got)
	}
}

func TestSelectExcludesHardFilteredRegion(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	c := cluster("c1", "eu-west", wire.Capabilities{MaxAgents: 10, AvailableAgents: 10})
	if _, err := r.Register(c, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := r.Select(Criteria{ExcludedRegions: []string{"eu-west"}}); got != nil {
		t.Fatalf("expected excluded-region cluster to be filtered out, got %v", got)
	}
}

func TestByRegionAndByStatusFilter(t *testing.T) {
	r := New(DefaultHealthConfig(), nil)
	a := cluster("a", "us-east", wire.Capabilities{})
	b := cluster("b", "us-west", wire.Capabilities{})
	b.Status = wire.ClusterOffline
	if _, err := r.Register(a, nil); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if _, err := r.Register(b, nil); err != nil {
		t.Fatalf("Register b: %v", err)
	}
	if got := r.ByRegion("us-east"); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected exactly cluster a in us-east, got %v", got)
	}
	if got := r.ByStatus(wire.ClusterOffline); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected exactly cluster b offline, got %v", got)
	}
}
