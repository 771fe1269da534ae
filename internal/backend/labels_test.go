package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/integrio/status-engine/internal/status"
)

func TestProjectID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		labels   map[string]string
		expected string
	}{
		{name: "project label wins", labels: map[string]string{LabelProjectID: "orders", LabelApp: "other"}, expected: "orders"},
		{name: "app label fallback", labels: map[string]string{LabelApp: "billing"}, expected: "billing"},
		{name: "name fallback", labels: nil, expected: "workload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ProjectID(tt.labels, "workload"))
		})
	}
}

func TestLabelsRoundTrip(t *testing.T) {
	t.Parallel()

	labels := Labels("orders", status.KindDevMode)
	assert.Equal(t, "orders", ProjectID(labels, "x"))
	assert.Equal(t, status.KindDevMode, ResourceKind(labels, status.KindContainer))
	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, status.KindPod, ResourceKind(map[string]string{LabelKind: "bogus"}, status.KindPod))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("Docker")
	assert.NoError(t, err)
	assert.Equal(t, KindDocker, k)

	_, err = ParseKind("nomad")
	assert.ErrorContains(t, err, "unsupported backend type")
}
