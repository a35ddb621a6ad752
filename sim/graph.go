// sim/graph.go
package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is the derived pub/sub structure: nodes in declaration order plus
// topic publisher/subscriber maps. Edges are represented with declaration
// indices, never owning references, so feedback cycles are harmless.
type Graph struct {
	Nodes []*Node

	byName           map[string]int
	topicPublisher   map[string]int
	topicSubscribers map[string][]int

	// mirror of the derived edge set for structural queries (self-loops omitted).
	mirror *simple.DirectedGraph
}

// BuildGraph derives the runtime graph from a validated config. It enforces
// the cross-node invariants: every topic has exactly one publisher and every
// subscribed topic has a publisher.
func BuildGraph(cfg *GraphConfig) (*Graph, error) {
	g := &Graph{
		byName:           make(map[string]int, len(cfg.Nodes)),
		topicPublisher:   make(map[string]int),
		topicSubscribers: make(map[string][]int),
		mirror:           simple.NewDirectedGraph(),
	}
	for i := range cfg.Nodes {
		node := NewNode(&cfg.Nodes[i], i)
		g.Nodes = append(g.Nodes, node)
		g.byName[node.Config.Name] = i
		g.mirror.AddNode(simple.Node(i))
	}
	for i, node := range g.Nodes {
		for _, topic := range node.publishedTopics {
			if prev, ok := g.topicPublisher[topic]; ok && prev != i {
				return nil, fmt.Errorf("duplicate publisher for topic %q: %q and %q",
					topic, g.Nodes[prev].Config.Name, node.Config.Name)
			}
			g.topicPublisher[topic] = i
		}
		for _, sub := range node.Config.Subscribe {
			g.topicSubscribers[sub.Topic] = append(g.topicSubscribers[sub.Topic], i)
		}
	}
	for topic := range g.topicSubscribers {
		if _, ok := g.topicPublisher[topic]; !ok {
			return nil, fmt.Errorf("subscribed topic %q has no publisher", topic)
		}
	}
	for _, e := range g.EdgeList() {
		if e[0] == e[1] {
			// gonum rejects self-loops; the edge set keeps them, the mirror skips them.
			continue
		}
		g.mirror.SetEdge(simple.Edge{F: simple.Node(e[0]), T: simple.Node(e[1])})
	}
	return g, nil
}

// NodeIndex returns the declaration index of the named node.
func (g *Graph) NodeIndex(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// Publisher returns the declaration index of the topic's single publisher.
func (g *Graph) Publisher(topic string) (int, bool) {
	i, ok := g.topicPublisher[topic]
	return i, ok
}

// Subscribers returns the subscriber indices of a topic in declaration order.
func (g *Graph) Subscribers(topic string) []int {
	return g.topicSubscribers[topic]
}

// EdgeList returns the derived edges as (publisher, subscriber) index pairs.
// Ordering is stable: publishers in declaration order, each publisher's
// topics in spec order, subscribers in declaration order; duplicate pairs
// collapse to the first occurrence.
func (g *Graph) EdgeList() [][2]int {
	var edges [][2]int
	seen := make(map[[2]int]bool)
	for i, node := range g.Nodes {
		for _, topic := range node.publishedTopics {
			for _, sub := range g.topicSubscribers[topic] {
				e := [2]int{i, sub}
				if seen[e] {
					continue
				}
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// Cycles returns the feedback cycles of the derived edge set as node-name
// groups, one per strongly connected component with more than one node.
// Cyclic graphs are legal; the executor terminates at the stop tick
// regardless, so this is reported for inspection only.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, comp := range topo.TarjanSCC(g.mirror) {
		if len(comp) < 2 {
			continue
		}
		ids := make([]int, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, int(n.ID()))
		}
		sort.Ints(ids)
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, g.Nodes[id].Config.Name)
		}
		cycles = append(cycles, names)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Topics returns the name of every published topic, ordered by publisher
// declaration order then spec order. Use Publisher for a topic's publisher.
func (g *Graph) Topics() []string {
	var topics []string
	seen := make(map[string]bool)
	for _, node := range g.Nodes {
		for _, topic := range node.publishedTopics {
			if seen[topic] {
				continue
			}
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	return topics
}
