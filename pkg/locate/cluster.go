package locate

import (
	"sort"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/geo"
)

// Cluster is a group of observations within a fixed radius of each other.
type Cluster struct {
	Observations []pkg.Observation `json:"observations"`
}

// Size returns the number of observations in the cluster.
func (c Cluster) Size() int {
	return len(c.Observations)
}

// Samples converts the cluster's observations into centroid samples.
func (c Cluster) Samples() []Sample {
	return toSamples(c.Observations)
}

// DetectClusters groups observations into distinct geographic clusters.
// Observations are sorted by timestamp and clustered greedily in a single
// pass: every unassigned observation seeds a cluster and pulls in all other
// unassigned observations within radiusMeters of it. Greedy and
// order-dependent, so not DBSCAN-grade, but sufficient for spotting that an
// AP's observations concentrate in a new area.
func DetectClusters(observations []pkg.Observation, minClusterSize int, radiusMeters float64) []Cluster {
	if len(observations) == 0 {
		return nil
	}

	sorted := make([]pkg.Observation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	used := make([]bool, len(sorted))
	var clusters []Cluster

	for i, seed := range sorted {
		if used[i] {
			continue
		}

		cluster := Cluster{Observations: []pkg.Observation{seed}}
		used[i] = true

		for j, other := range sorted {
			if used[j] {
				continue
			}
			dist := geo.DistanceMeters(seed.Latitude, seed.Longitude, other.Latitude, other.Longitude)
			if dist <= radiusMeters {
				cluster.Observations = append(cluster.Observations, other)
				used[j] = true
			}
		}

		if cluster.Size() >= minClusterSize {
			clusters = append(clusters, cluster)
		}
	}

	return clusters
}
