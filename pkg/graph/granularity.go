package graph

import "github.com/podgraph/backend/pkg/common"

const (
	// OtherCategoryName is the trailing category for nodes that could not be
	// attached to any anchor.
	OtherCategoryName = "Other"

	AnchorSymbolSize = 20
	NodeSymbolSize   = 10

	initialCategoryCount = 3
	categoryCountStep    = 3
	maxGranularityLevels = 3
	minAnchorDegree      = 2
	// A finer level is only built when more nodes than this ended up in Other.
	otherNodeCutoff = 4
)

type GraphCategory struct {
	Name string `json:"name"`
}

type GraphNodeDisplay struct {
	Name             string             `json:"name"`
	NodeID           string             `json:"nodeId"`
	VideoID          string             `json:"videoId"`
	Summary          string             `json:"summary"`
	PrimarySpeakerID string             `json:"primarySpeakerId"`
	References       []common.Reference `json:"references"`
	Value            float64            `json:"value"`
	Category         int                `json:"category"`
	SymbolSize       int                `json:"symbolSize"`
	IsBookmarked     bool               `json:"isBookmarked"`
}

// GraphLinkDisplay references nodes by their index in GraphElements.Nodes.
type GraphLinkDisplay struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

type GraphElements struct {
	Categories []GraphCategory    `json:"categories"`
	Nodes      []GraphNodeDisplay `json:"nodes"`
	Links      []GraphLinkDisplay `json:"links"`
}

// Granularity is one level of the category summary of a user's graph.
// Higher levels use more anchors and resolve finer distinctions.
type Granularity struct {
	Level int           `json:"granularity"`
	Graph GraphElements `json:"graph"`
}

// BuildGranularities summarises a graph into at most three levels of anchor
// based categories.
//
// nodes must be sorted by descending impact score; anchors are picked in
// that order. Edges whose endpoints are not in nodes are ignored.
func BuildGranularities(nodes []common.GraphNode, edges []common.GraphEdge) []Granularity {
	granularities := make([]Granularity, 0)
	if len(nodes) == 0 {
		return granularities
	}

	degrees := nodeDegrees(edges)
	adjacency := neighborWeights(edges)

	maxCategoryCount := initialCategoryCount
	for level := 0; level < maxGranularityLevels; level++ {
		if maxCategoryCount >= len(nodes) {
			break
		}

		g, otherCount := buildGranularity(level, maxCategoryCount, nodes, edges, degrees, adjacency)
		granularities = append(granularities, g)

		if otherCount <= otherNodeCutoff {
			break
		}
		maxCategoryCount += categoryCountStep
	}

	return granularities
}

func buildGranularity(
	level int,
	maxCategoryCount int,
	nodes []common.GraphNode,
	edges []common.GraphEdge,
	degrees map[string]int,
	adjacency map[string]map[string]float64,
) (Granularity, int) {
	candidates := make([]common.GraphNode, 0)
	for _, n := range nodes {
		if degrees[n.ID] >= minAnchorDegree {
			candidates = append(candidates, n)
		}
	}

	validCategoryCount := min(maxCategoryCount, len(candidates))
	anchors := candidates[:validCategoryCount]
	anchorIndex := make(map[string]int, len(anchors))
	categories := make([]GraphCategory, 0, len(anchors)+1)
	for i, a := range anchors {
		anchorIndex[a.ID] = i
		categories = append(categories, GraphCategory{Name: a.Label})
	}
	if validCategoryCount < len(nodes) {
		categories = append(categories, GraphCategory{Name: OtherCategoryName})
	}
	otherIndex := len(categories) - 1

	displays := make([]GraphNodeDisplay, 0, len(nodes))
	nodeIndex := make(map[string]int, len(nodes))
	otherCount := 0

	for i, n := range nodes {
		nodeIndex[n.ID] = i

		category := otherIndex
		size := NodeSymbolSize
		if idx, ok := anchorIndex[n.ID]; ok {
			category = idx
			size = AnchorSymbolSize
		} else if best := bestAnchor(adjacency[n.ID], anchors); best >= 0 {
			category = best
		} else {
			otherCount++
		}

		displays = append(displays, GraphNodeDisplay{
			Name:             n.Label,
			NodeID:           n.ID,
			VideoID:          n.VideoID,
			Summary:          n.Summary,
			PrimarySpeakerID: n.PrimarySpeakerID,
			References:       n.References,
			Value:            n.ImpactScore,
			Category:         category,
			SymbolSize:       size,
			IsBookmarked:     n.IsBookmarked,
		})
	}

	links := make([]GraphLinkDisplay, 0, len(edges))
	for _, e := range edges {
		s, okS := nodeIndex[e.SourceNodeID]
		t, okT := nodeIndex[e.TargetNodeID]
		if !okS || !okT {
			continue
		}
		links = append(links, GraphLinkDisplay{Source: s, Target: t})
	}

	return Granularity{
		Level: level,
		Graph: GraphElements{
			Categories: categories,
			Nodes:      displays,
			Links:      links,
		},
	}, otherCount
}

// bestAnchor returns the index of the connected anchor with the highest edge
// weight, or -1. On equal weights the earlier anchor wins.
func bestAnchor(neighbors map[string]float64, anchors []common.GraphNode) int {
	best := -1
	bestWeight := -1.0
	for i, a := range anchors {
		w, ok := neighbors[a.ID]
		if !ok {
			continue
		}
		if w > bestWeight {
			bestWeight = w
			best = i
		}
	}
	return best
}

func nodeDegrees(edges []common.GraphEdge) map[string]int {
	degrees := make(map[string]int)
	for _, e := range edges {
		degrees[e.SourceNodeID]++
		degrees[e.TargetNodeID]++
	}
	return degrees
}

// neighborWeights builds an undirected adjacency map. When a pair is joined
// by more than one edge the highest weight is kept.
func neighborWeights(edges []common.GraphEdge) map[string]map[string]float64 {
	adj := make(map[string]map[string]float64)
	add := func(from, to string, w float64) {
		m, ok := adj[from]
		if !ok {
			m = make(map[string]float64)
			adj[from] = m
		}
		if cur, ok := m[to]; !ok || w > cur {
			m[to] = w
		}
	}
	for _, e := range edges {
		add(e.SourceNodeID, e.TargetNodeID, e.Weight)
		add(e.TargetNodeID, e.SourceNodeID, e.Weight)
	}
	return adj
}
