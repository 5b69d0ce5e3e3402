package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type fakeEntities struct {
	counts map[Entity]int64
	fail   map[Entity]error
	calls  atomic.Int64
}

func (f *fakeEntities) CountEntities(_ context.Context, e Entity) (int64, error) {
	f.calls.Add(1)
	if err := f.fail[e]; err != nil {
		return 0, err
	}
	return f.counts[e], nil
}

type fakeSessions struct {
	counts SessionCounts
	err    error
}

func (f *fakeSessions) CountSessions(context.Context) (SessionCounts, error) {
	return f.counts, f.err
}

type fakeJobs struct {
	byStatus     map[string]int64
	byNodeStatus []NodeCount
	byLaunchType []NodeCount
	err          error
	statusCalls  atomic.Int64
}

func (f *fakeJobs) CountJobsByStatus(context.Context) (map[string]int64, error) {
	f.statusCalls.Add(1)
	return f.byStatus, f.err
}

func (f *fakeJobs) CountJobsByNodeStatus(context.Context) ([]NodeCount, error) {
	return f.byNodeStatus, f.err
}

func (f *fakeJobs) CountJobsByNodeLaunchType(context.Context) ([]NodeCount, error) {
	return f.byLaunchType, f.err
}

// fakeInstances 每次读取都改变 consumed，用于检测撕裂读
type fakeInstances struct {
	mu    sync.Mutex
	rows  []InstanceStats
	drift int64
	calls int
	err   error
}

func (f *fakeInstances) InstanceStats(context.Context) ([]InstanceStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]InstanceStats, len(f.rows))
	copy(out, f.rows)
	for i := range out {
		out[i].ConsumedCapacity += f.drift * int64(f.calls)
	}
	return out, nil
}

type fakeLicense struct {
	facts LicenseFacts
	err   error
}

func (f *fakeLicense) LicenseFacts(context.Context) (LicenseFacts, error) {
	return f.facts, f.err
}

type fakeConnections struct {
	n   int64
	err error
}

func (f *fakeConnections) DatabaseConnections(context.Context) (int64, error) {
	return f.n, f.err
}

type fakeSubsystem struct {
	samples []SubsystemSample
	err     error
}

func (f *fakeSubsystem) SubsystemMetrics(context.Context) ([]SubsystemSample, error) {
	return f.samples, f.err
}

func fixtureSources() (Sources, *fakeEntities, *fakeInstances) {
	entities := &fakeEntities{counts: map[Entity]int64{
		EntityOrganizations:        1,
		EntityUsers:                1,
		EntityTeams:                1,
		EntityInventories:          1,
		EntityProjects:             1,
		EntityJobTemplates:         1,
		EntityWorkflowJobTemplates: 1,
		EntityHosts:                1,
		EntitySchedules:            1,
	}}
	instances := &fakeInstances{rows: []InstanceStats{
		{Hostname: "awx-1", UUID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Version: "24.6.1", NodeType: "hybrid",
			Enabled: true, ManagedByPolicy: true, Capacity: 100, ConsumedCapacity: 30, CPU: 4, Memory: 8 << 20},
		{Hostname: "awx-2", UUID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Version: "24.6.1", NodeType: "execution",
			Enabled: false, Capacity: 50, ConsumedCapacity: 60, CPU: 2.5, Memory: 4 << 20},
	}}
	src := Sources{
		Entities: entities,
		Jobs: &fakeJobs{
			byStatus:     map[string]int64{"successful": 3, "failed": 1},
			byNodeStatus: []NodeCount{{Node: "awx-1", Value: "successful", Count: 3}},
			byLaunchType: []NodeCount{{Node: "awx-1", Value: "manual", Count: 4}},
		},
		Sessions:    &fakeSessions{},
		Instances:   instances,
		License:     &fakeLicense{facts: LicenseFacts{InstanceCount: 10, LicenseType: "enterprise", Expiry: time.Unix(1893456000, 0)}},
		Connections: &fakeConnections{n: 3},
		Subsystem: &fakeSubsystem{samples: []SubsystemSample{
			{Node: "awx-1", Metric: MetricTaskManagerScheduleCalls, Value: 12},
			{Node: "awx-2", Metric: MetricTaskManagerScheduleCalls, Value: 7},
			{Node: "awx-1", Metric: MetricSubsystemMetricsPipeExecuteSeconds, Value: 0.125},
		}},
	}
	return src, entities, instances
}

var testInfo = SystemInfo{InstallUUID: "00000000-0000-0000-0000-000000000001", Version: "24.6.1", URLBase: "https://awx.example.com"}

// sampleValue 返回 name 在给定标签下的值
func sampleValue(s *Snapshot, name string, labels ...Label) (float64, bool) {
	for _, smp := range s.Samples {
		if smp.Name != name || len(smp.Labels) < len(labels) {
			continue
		}
		match := true
		for _, l := range labels {
			found := false
			for _, sl := range smp.Labels {
				if sl == l {
					found = true
					break
				}
			}
			if !found {
				match = false
				break
			}
		}
		if match {
			return smp.Value, true
		}
	}
	return 0, false
}
