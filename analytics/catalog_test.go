package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectCatalog(t *testing.T, src Sources, opts CollectOptions) *Snapshot {
	t.Helper()
	reg, err := NewRegistry(NewCatalog(src, testInfo)...)
	require.NoError(t, err)
	return NewAggregator(reg).Collect(context.Background(), opts)
}

func TestCatalogFixtureCounts(t *testing.T) {
	src, _, _ := fixtureSources()
	snap := collectCatalog(t, src, CollectOptions{})
	require.Empty(t, snap.Failures)

	for _, name := range []string{
		MetricOrganizationsTotal, MetricUsersTotal, MetricTeamsTotal, MetricInventoriesTotal,
		MetricProjectsTotal, MetricJobTemplatesTotal, MetricWorkflowJobTemplatesTotal,
		MetricHostsTotal, MetricSchedulesTotal,
	} {
		v, ok := sampleValue(snap, name)
		require.True(t, ok, name)
		assert.Equal(t, 1.0, v, name)
	}

	for _, typ := range []string{"all", "user", "anonymous"} {
		v, ok := sampleValue(snap, MetricSessionsTotal, L("type", typ))
		require.True(t, ok, typ)
		assert.Zero(t, v)
	}

	running, _ := sampleValue(snap, MetricRunningJobsTotal)
	pending, _ := sampleValue(snap, MetricPendingJobsTotal)
	assert.Zero(t, running)
	assert.Zero(t, pending)

	failed, ok := sampleValue(snap, MetricStatusTotal, L("status", "failed"))
	require.True(t, ok)
	assert.Equal(t, 1.0, failed)

	info, ok := sampleValue(snap, MetricSystemInfo, L("license_type", "enterprise"), L("license_expiry", "1893456000"))
	require.True(t, ok)
	assert.Equal(t, 1.0, info)
}

func TestCatalogCapacityIdentity(t *testing.T) {
	src, _, instances := fixtureSources()
	instances.drift = 7

	snap := collectCatalog(t, src, CollectOptions{})
	require.Empty(t, snap.Failures)
	assert.Equal(t, 1, instances.calls, "capacity metrics must share one read")

	for _, node := range instances.rows {
		labels := []Label{L("hostname", node.Hostname), L("instance_uuid", node.UUID)}
		capacity, ok := sampleValue(snap, MetricInstanceCapacity, labels...)
		require.True(t, ok)
		consumed, ok := sampleValue(snap, MetricInstanceConsumedCapacity, labels...)
		require.True(t, ok)
		remaining, ok := sampleValue(snap, MetricInstanceRemainingCapacity, labels...)
		require.True(t, ok)
		assert.Equal(t, capacity, consumed+remaining, node.Hostname)
	}

	remaining, _ := sampleValue(snap, MetricInstanceRemainingCapacity, L("hostname", "awx-2"))
	assert.Less(t, remaining, 0.0, "remaining capacity is not clamped")

	cpu, _ := sampleValue(snap, MetricInstanceCPU, L("hostname", "awx-2"))
	assert.Equal(t, 2.5, cpu)

	enabled, ok := sampleValue(snap, MetricInstanceInfo, L("hostname", "awx-2"), L("enabled", "false"), L("node_type", "execution"))
	require.True(t, ok)
	assert.Equal(t, 1.0, enabled)
}

func TestCatalogLicense(t *testing.T) {
	tests := []struct {
		name     string
		licensed int64
		hosts    int64
		wantFree float64
	}{
		{"room left", 10, 3, 7},
		{"exactly used", 5, 5, 0},
		{"over subscribed", 2, 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, entities, _ := fixtureSources()
			entities.counts[EntityHosts] = tt.hosts
			src.License = &fakeLicense{facts: LicenseFacts{InstanceCount: tt.licensed}}

			snap := collectCatalog(t, src, CollectOptions{})
			total, _ := sampleValue(snap, MetricLicenseInstanceTotal)
			free, _ := sampleValue(snap, MetricLicenseInstanceFree)
			assert.Equal(t, float64(tt.licensed), total)
			assert.Equal(t, tt.wantFree, free)
		})
	}
}

func TestCatalogSharedReadsPerSnapshot(t *testing.T) {
	src, entities, _ := fixtureSources()
	jobs := src.Jobs.(*fakeJobs)

	collectCatalog(t, src, CollectOptions{})
	assert.Equal(t, int64(1), jobs.statusCalls.Load(), "status, running and pending share one read")
	assert.Equal(t, int64(len(Entities)), entities.calls.Load(), "hosts read is shared with license free")

	collectCatalog(t, src, CollectOptions{})
	assert.Equal(t, int64(2), jobs.statusCalls.Load(), "reads are not shared across snapshots")
}

func TestCatalogSourceFailureIsolated(t *testing.T) {
	src, entities, _ := fixtureSources()
	entities.fail = map[Entity]error{EntityTeams: errors.New("relation \"main_team\" does not exist")}

	snap := collectCatalog(t, src, CollectOptions{})
	assert.True(t, snap.Failed(MetricTeamsTotal))
	assert.Len(t, snap.Failures, 1)
	_, ok := sampleValue(snap, MetricTeamsTotal)
	assert.False(t, ok)
	v, ok := sampleValue(snap, MetricUsersTotal)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestCatalogDatabaseConnectionsAtLeastOne(t *testing.T) {
	src, _, _ := fixtureSources()
	src.Connections = &fakeConnections{n: 0}
	snap := collectCatalog(t, src, CollectOptions{})
	v, ok := sampleValue(snap, MetricDatabaseConnectionsTotal)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestCatalogSubsystem(t *testing.T) {
	src, _, _ := fixtureSources()

	snap := collectCatalog(t, src, CollectOptions{})
	calls, ok := sampleValue(snap, MetricTaskManagerScheduleCalls, L("node", "awx-2"))
	require.True(t, ok)
	assert.Equal(t, 7.0, calls)
	seconds, ok := sampleValue(snap, MetricSubsystemMetricsPipeExecuteSeconds, L("node", "awx-1"))
	require.True(t, ok)
	assert.Equal(t, 0.125, seconds)

	dbOnly := collectCatalog(t, src, CollectOptions{DBOnly: true})
	_, ok = sampleValue(dbOnly, MetricTaskManagerScheduleCalls)
	assert.False(t, ok)

	src.Subsystem = nil
	defs := NewCatalog(src, testInfo)
	for _, d := range defs {
		assert.NotEqual(t, SourceSubsystem, d.Source)
	}
}

func TestCatalogMissingSources(t *testing.T) {
	snap := collectCatalog(t, Sources{}, CollectOptions{})
	for _, f := range snap.Failures {
		assert.ErrorIs(t, f.Err, ErrSourceUnavailable, f.Metric)
	}
	info, ok := sampleValue(snap, MetricSystemInfo)
	require.True(t, ok)
	assert.Equal(t, 1.0, info)
}

func TestLookupSubsystemMetric(t *testing.T) {
	m, ok := LookupSubsystemMetric(MetricSubsystemMetricsPipeExecuteSeconds)
	require.True(t, ok)
	assert.Equal(t, Float, m.ValueType)
	_, ok = LookupSubsystemMetric("awx_unknown")
	assert.False(t, ok)
}
