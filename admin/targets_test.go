package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostListNormalizesEmptyToUnset(t *testing.T) {
	assert.True(t, HostList().IsUnset())

	var none []string
	assert.True(t, HostList(none...).IsUnset())
}

func TestHostListPreservesOrder(t *testing.T) {
	targets := HostList("h2", "h1")
	assert.Equal(t, []string{"h2", "h1"}, targets.Hosts())

	// The selection is immutable once constructed.
	hosts := targets.Hosts()
	hosts[0] = "mutated"
	assert.Equal(t, []string{"h2", "h1"}, targets.Hosts())
}

func TestSentinels(t *testing.T) {
	assert.True(t, AllHosts().IsAll())
	assert.False(t, AllHosts().IsSigned())
	assert.True(t, SignedHosts().IsSigned())
	assert.Nil(t, AllHosts().Hosts())
}

func TestTargetsFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		all     bool
		signed  bool
		hosts   []string
		want    Targets
		wantErr bool
	}{
		{name: "explicit hosts", hosts: []string{"a", "b"}, want: HostList("a", "b")},
		{name: "empty normalizes to unset", hosts: nil, want: Targets{}},
		{name: "all", all: true, want: AllHosts()},
		{name: "signed", signed: true, want: SignedHosts()},
		{name: "all and signed conflict", all: true, signed: true, wantErr: true},
		{name: "all with hosts conflict", all: true, hosts: []string{"a"}, wantErr: true},
		{name: "signed with hosts conflict", signed: true, hosts: []string{"a"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TargetsFromFlags(tt.all, tt.signed, tt.hosts)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTargets)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
