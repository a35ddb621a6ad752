// sim/config.go
package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Range is an inclusive integer interval [lo, hi].
type Range [2]int

// Lo returns the inclusive lower bound.
func (r Range) Lo() int { return r[0] }

// Hi returns the inclusive upper bound.
func (r Range) Hi() int { return r[1] }

// Contains reports whether v falls within the inclusive bounds.
func (r Range) Contains(v int) bool { return r[0] <= v && v <= r[1] }

func (r Range) ordered() bool { return r[0] <= r[1] }

// PublishSpec declares that a callback publishes to a topic. The published
// value is sampled uniformly from ValueRange and the transmission delay from
// DelayRange, both inclusive.
type PublishSpec struct {
	Topic      string `yaml:"topic"`
	ValueRange Range  `yaml:"value_range"`
	DelayRange Range  `yaml:"delay_range"`
}

// ActionSpec is a callback-produced directive against the node itself rather
// than one of its topics.
type ActionSpec struct {
	// DropEventFor makes the node ignore its next N loop firings and receipts,
	// simulating a stuck process.
	DropEventFor int `yaml:"drop_event_for"`
	// Crash kills the node for good. No further events are handled.
	Crash bool `yaml:"crash"`
}

// CallbackSpec is declarative: a list of publications, plus at most one of a
// publish-side fault directive against the node's own topic or an action
// against the node itself. Callbacks execute in zero simulated time.
type CallbackSpec struct {
	Publish []PublishSpec   `yaml:"publish"`
	Fault   *FaultDirective `yaml:"fault"`
	Action  *ActionSpec     `yaml:"action"`
}

// LoopSpec declares periodic work: the callback runs every Period ticks,
// starting at tick 0.
type LoopSpec struct {
	Period   int          `yaml:"period"`
	Callback CallbackSpec `yaml:"callback"`
}

// SubscribeSpec declares what a node does with messages on a topic. Values
// inside ValidRange dispatch NominalCallback; values outside it dispatch
// InvalidInputCallback. If Watchdog is set and no message arrives for more
// than Watchdog ticks since the last receipt, LostInputCallback fires once
// per such gap.
type SubscribeSpec struct {
	Topic      string `yaml:"topic"`
	ValidRange Range  `yaml:"valid_range"`
	// Watchdog is the maximum tick gap between receipts; 0 disables the check.
	Watchdog int `yaml:"watchdog"`

	NominalCallback      *CallbackSpec `yaml:"nominal_callback"`
	InvalidInputCallback *CallbackSpec `yaml:"invalid_input_callback"`
	LostInputCallback    *CallbackSpec `yaml:"lost_input_callback"`
}

// NodeConfig describes one node: an optional periodic loop and zero or more
// subscriptions. A node must have at least one of the two.
type NodeConfig struct {
	Name      string          `yaml:"name"`
	Loop      *LoopSpec       `yaml:"loop"`
	Subscribe []SubscribeSpec `yaml:"subscribe"`
}

// GraphConfig is the parsed graph file: the node list in declaration order.
// Declaration order is load-bearing; it fixes node indices, loop firing order
// and RNG sampling order.
type GraphConfig struct {
	Nodes []NodeConfig `yaml:"nodes"`
}

// LoadGraphConfig reads and validates a graph config file.
func LoadGraphConfig(path string) (*GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph config %s: %w", path, err)
	}
	var cfg GraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("graph config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("graph config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate performs field-level checks. Cross-node checks (duplicate topic
// publisher, subscribed topic without publisher) live in BuildGraph.
func (c *GraphConfig) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("nodes: at least one node is required")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: name must be provided", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("nodes[%d]: duplicate node name %q", i, n.Name)
		}
		seen[n.Name] = true
		if n.Loop == nil && len(n.Subscribe) == 0 {
			return fmt.Errorf("node %q: must have a loop or at least one subscription", n.Name)
		}
		if n.Loop != nil {
			if n.Loop.Period < 1 {
				return fmt.Errorf("node %q: loop period must be >= 1, got %d", n.Name, n.Loop.Period)
			}
			if err := validateCallback(&n.Loop.Callback); err != nil {
				return fmt.Errorf("node %q: loop callback: %w", n.Name, err)
			}
		}
		subTopics := make(map[string]bool, len(n.Subscribe))
		for _, sub := range n.Subscribe {
			if sub.Topic == "" {
				return fmt.Errorf("node %q: subscription topic must be provided", n.Name)
			}
			if subTopics[sub.Topic] {
				return fmt.Errorf("node %q: duplicate subscription to topic %q", n.Name, sub.Topic)
			}
			subTopics[sub.Topic] = true
			if !sub.ValidRange.ordered() {
				return fmt.Errorf("node %q: topic %q: valid_range out of order: [%d, %d]",
					n.Name, sub.Topic, sub.ValidRange.Lo(), sub.ValidRange.Hi())
			}
			if sub.Watchdog < 0 {
				return fmt.Errorf("node %q: topic %q: watchdog must be non-negative, got %d",
					n.Name, sub.Topic, sub.Watchdog)
			}
			for slot, cb := range map[string]*CallbackSpec{
				"nominal_callback":       sub.NominalCallback,
				"invalid_input_callback": sub.InvalidInputCallback,
				"lost_input_callback":    sub.LostInputCallback,
			} {
				if cb == nil {
					continue
				}
				if err := validateCallback(cb); err != nil {
					return fmt.Errorf("node %q: topic %q: %s: %w", n.Name, sub.Topic, slot, err)
				}
			}
		}
	}
	return nil
}

func validateCallback(cb *CallbackSpec) error {
	for _, pub := range cb.Publish {
		if pub.Topic == "" {
			return fmt.Errorf("publish topic must be provided")
		}
		if !pub.ValueRange.ordered() {
			return fmt.Errorf("topic %q: value_range out of order: [%d, %d]",
				pub.Topic, pub.ValueRange.Lo(), pub.ValueRange.Hi())
		}
		if !pub.DelayRange.ordered() {
			return fmt.Errorf("topic %q: delay_range out of order: [%d, %d]",
				pub.Topic, pub.DelayRange.Lo(), pub.DelayRange.Hi())
		}
		if pub.DelayRange.Lo() < 0 {
			return fmt.Errorf("topic %q: delay_range must be non-negative, got %d",
				pub.Topic, pub.DelayRange.Lo())
		}
	}
	if cb.Fault != nil && cb.Action != nil {
		return fmt.Errorf("callback cannot carry both a fault directive and an action")
	}
	if cb.Fault != nil {
		if err := cb.Fault.validate(); err != nil {
			return err
		}
	}
	if cb.Action != nil && cb.Action.DropEventFor < 0 {
		return fmt.Errorf("drop_event_for must be non-negative, got %d", cb.Action.DropEventFor)
	}
	return nil
}
