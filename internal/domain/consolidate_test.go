package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusterFor(target, category, location string, size int) Cluster {
	members := makeRecords(size, category, location, target, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	return Cluster{
		Key:      ClusterKey{Location: location, Category: category},
		Category: category,
		Members:  members,
		TargetID: target,
	}
}

func TestConsolidateByTarget(t *testing.T) {
	t.Run("three clusters for one target become one roundup", func(t *testing.T) {
		clusters := []Cluster{
			clusterFor("greenpoint", "Noise - Commercial", "100 main st", 6),
			clusterFor("greenpoint", "Illegal Parking", "200 oak ave", 5),
			clusterFor("greenpoint", "Noise - Commercial", "300 elm st", 8),
		}

		contexts := ConsolidateByTarget(clusters, "complaints", "Quality of Life")

		require.Len(t, contexts, 1)
		ctx := contexts[0]
		assert.True(t, ctx.Roundup)
		assert.Len(t, ctx.Clusters, 3)
		assert.Equal(t, "greenpoint", ctx.TargetID)
		assert.Equal(t, "roundup", ctx.Distinguisher())
	})

	t.Run("single cluster publishes standalone", func(t *testing.T) {
		clusters := []Cluster{clusterFor("ridgewood", "Noise - Commercial", "100 main st", 6)}

		contexts := ConsolidateByTarget(clusters, "complaints", "Quality of Life")

		require.Len(t, contexts, 1)
		assert.False(t, contexts[0].Roundup)
		assert.Equal(t, "Noise - Commercial|100 main st", contexts[0].Distinguisher())
	})

	t.Run("targets stay independent and sorted", func(t *testing.T) {
		clusters := []Cluster{
			clusterFor("williamsburg", "Noise - Commercial", "100 main st", 6),
			clusterFor("greenpoint", "Noise - Commercial", "400 pine st", 5),
			clusterFor("greenpoint", "Illegal Parking", "500 cedar ln", 7),
		}

		contexts := ConsolidateByTarget(clusters, "complaints", "Quality of Life")

		require.Len(t, contexts, 2)
		assert.Equal(t, "greenpoint", contexts[0].TargetID)
		assert.True(t, contexts[0].Roundup)
		assert.Equal(t, "williamsburg", contexts[1].TargetID)
		assert.False(t, contexts[1].Roundup)
	})

	t.Run("no clusters no contexts", func(t *testing.T) {
		assert.Empty(t, ConsolidateByTarget(nil, "complaints", "Quality of Life"))
	})
}
