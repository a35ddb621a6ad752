package sim

import (
	"strconv"
	"testing"
)

func intp(v int) *int { return &v }

func pubSpec(topic string, lo, hi, dlo, dhi int) PublishSpec {
	return PublishSpec{Topic: topic, ValueRange: Range{lo, hi}, DelayRange: Range{dlo, dhi}}
}

func loopNode(name string, period int, pubs ...PublishSpec) NodeConfig {
	return NodeConfig{
		Name: name,
		Loop: &LoopSpec{Period: period, Callback: CallbackSpec{Publish: pubs}},
	}
}

func subSpec(topic string, lo, hi, watchdog int) SubscribeSpec {
	return SubscribeSpec{Topic: topic, ValidRange: Range{lo, hi}, Watchdog: watchdog}
}

func subNode(name string, subs ...SubscribeSpec) NodeConfig {
	return NodeConfig{Name: name, Subscribe: subs}
}

// buildTestGraph validates and derives a graph, failing the test on error.
func buildTestGraph(t *testing.T, nodes ...NodeConfig) *Graph {
	t.Helper()
	cfg := &GraphConfig{Nodes: nodes}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config validation failed: %v", err)
	}
	g, err := BuildGraph(cfg)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
	return g
}

// feat extracts feature featIdx of the node at nodeIdx from a recorder row.
func feat(t *testing.T, row []string, nodeIdx, featIdx int) int {
	t.Helper()
	v, err := strconv.Atoi(row[nodeIdx*(FeatureWidth+1)+1+featIdx])
	if err != nil {
		t.Fatalf("feature parse: %v", err)
	}
	return v
}
