package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64, labels ...Label) ComputeFunc {
	return func(context.Context) ([]Sample, error) {
		return []Sample{Point(v, labels...)}, nil
	}
}

func TestNewRegistryValidation(t *testing.T) {
	ok := constant(1)
	tests := []struct {
		name    string
		defs    []Definition
		wantErr error
	}{
		{"empty name", []Definition{{Compute: ok}}, ErrInvalidDefinition},
		{"missing prefix", []Definition{{Name: "hosts_total", Compute: ok}}, ErrInvalidDefinition},
		{"camel case", []Definition{{Name: "awx_hostsTotal", Compute: ok}}, ErrInvalidDefinition},
		{"double underscore", []Definition{{Name: "awx__hosts", Compute: ok}}, ErrInvalidDefinition},
		{"nil compute", []Definition{{Name: "awx_hosts_total"}}, ErrInvalidDefinition},
		{"bad kind", []Definition{{Name: "awx_hosts_total", Kind: Kind(9), Compute: ok}}, ErrInvalidDefinition},
		{"bad label", []Definition{{Name: "awx_status_total", LabelKeys: []string{"Status"}, Compute: ok}}, ErrInvalidDefinition},
		{"duplicate label", []Definition{{Name: "awx_status_total", LabelKeys: []string{"node", "node"}, Compute: ok}}, ErrInvalidDefinition},
		{"duplicate metric", []Definition{
			{Name: "awx_hosts_total", Compute: ok},
			{Name: "awx_hosts_total", Compute: ok},
		}, ErrDuplicateMetric},
		{"valid", []Definition{
			{Name: "awx_hosts_total", Compute: ok},
			{Name: "awx_status_total", LabelKeys: []string{"status"}, Compute: ok},
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.defs...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, reg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.defs), reg.Len())
		})
	}
}

func TestMustNewRegistryPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		MustNewRegistry(
			Definition{Name: "awx_users_total", Compute: constant(1)},
			Definition{Name: "awx_users_total", Compute: constant(2)},
		)
	})
}

func TestRegistryOrderIsStable(t *testing.T) {
	src, _, _ := fixtureSources()
	reg := MustNewRegistry(NewCatalog(src, testInfo)...)

	first := reg.Definitions()
	for i := 0; i < 5; i++ {
		again := reg.Definitions()
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Name, again[j].Name)
		}
	}
	assert.Equal(t, MetricSystemInfo, first[0].Name)
	assert.Equal(t, MetricOrganizationsTotal, first[1].Name)
}

func TestRegistryDefinitionsIsACopy(t *testing.T) {
	reg := MustNewRegistry(Definition{Name: "awx_hosts_total", Help: "Number of hosts", Compute: constant(1)})
	defs := reg.Definitions()
	defs[0].Name = "awx_mutated"

	d, ok := reg.Lookup("awx_hosts_total")
	require.True(t, ok)
	assert.Equal(t, "Number of hosts", d.Help)
	_, ok = reg.Lookup("awx_mutated")
	assert.False(t, ok)
}

func TestRegistryFilterDBOnly(t *testing.T) {
	src, _, _ := fixtureSources()
	reg := MustNewRegistry(NewCatalog(src, testInfo)...)

	all := reg.Filter(CollectOptions{})
	dbOnly := reg.Filter(CollectOptions{DBOnly: true})
	assert.Equal(t, reg.Len(), len(all))
	assert.Equal(t, reg.Len()-len(SubsystemMetrics), len(dbOnly))
	for _, d := range dbOnly {
		assert.NotEqual(t, SourceSubsystem, d.Source, d.Name)
	}
}

func TestKindAndSourceStrings(t *testing.T) {
	assert.Equal(t, "gauge", Gauge.String())
	assert.Equal(t, "counter", Counter.String())
	assert.Equal(t, "integer", Integer.String())
	assert.Equal(t, "float", Float.String())
	assert.Equal(t, "static", SourceStatic.String())
	assert.Equal(t, "database", SourceDatabase.String())
	assert.Equal(t, "subsystem", SourceSubsystem.String())
}
