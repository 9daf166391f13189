package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoneSetHelpers(t *testing.T) {
	assert.Equal(t, []string{"Z1", "Z2"}, SortedUnique([]string{"Z2", "", "Z1", "Z2"}))
	assert.Equal(t, []string{"Z2"}, IntersectZones([]string{"Z1", "Z2"}, []string{"Z2", "Z3"}))
	assert.Equal(t, []string{"Z1", "Z2", "Z3"}, UnionZones([]string{"Z3"}, nil, []string{"Z1", "Z2"}))
	assert.Equal(t, []string{"Z1"}, SubtractZones([]string{"Z1", "Z2"}, []string{"Z2"}))
	assert.Equal(t, []string{}, IntersectZones(nil, []string{"Z1"}))
}
