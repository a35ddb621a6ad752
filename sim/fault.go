// sim/fault.go
package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PublishFaultKind discriminates the publish-side fault variants.
type PublishFaultKind int

const (
	// PublishFaultDrop suppresses the next Remaining publications entirely.
	PublishFaultDrop PublishFaultKind = iota
	// PublishFaultOverride substitutes Value for the sampled value on the
	// next Remaining publications.
	PublishFaultOverride
)

// PublishFaultState is the active publish-side fault on one node/topic pair.
// Remaining decrements on each affected publication; the state is removed
// when it reaches zero.
type PublishFaultState struct {
	Kind      PublishFaultKind
	Value     int
	Remaining int
}

// AffectPublishSpec mutates outgoing publications on a topic: either drop the
// next Drop publications, or override the next Count publications with Value.
type AffectPublishSpec struct {
	Topic string `yaml:"topic"`
	Drop  int    `yaml:"drop"`
	Value *int   `yaml:"value"`
	Count int    `yaml:"count"`
}

// state materializes the runtime counter for this spec.
func (a *AffectPublishSpec) state() *PublishFaultState {
	if a.Value != nil {
		return &PublishFaultState{Kind: PublishFaultOverride, Value: *a.Value, Remaining: a.Count}
	}
	return &PublishFaultState{Kind: PublishFaultDrop, Remaining: a.Drop}
}

func (a *AffectPublishSpec) validate() error {
	if a.Topic == "" {
		return fmt.Errorf("affect_publish: topic must be provided")
	}
	if a.Value != nil {
		if a.Drop != 0 {
			return fmt.Errorf("affect_publish: topic %q: drop and value are mutually exclusive", a.Topic)
		}
		if a.Count < 1 {
			return fmt.Errorf("affect_publish: topic %q: count must be >= 1, got %d", a.Topic, a.Count)
		}
		return nil
	}
	if a.Drop < 1 {
		return fmt.Errorf("affect_publish: topic %q: drop must be >= 1, got %d", a.Topic, a.Drop)
	}
	return nil
}

// AffectReceiveSpec mutates inbound deliveries on a topic: Delay adds a fixed
// extra delay to every delivery for the rest of the run; Drop discards the
// next Drop deliveries at receipt.
type AffectReceiveSpec struct {
	Topic string `yaml:"topic"`
	Delay *int   `yaml:"delay"`
	Drop  int    `yaml:"drop"`
}

func (a *AffectReceiveSpec) validate() error {
	if a.Topic == "" {
		return fmt.Errorf("affect_receive: topic must be provided")
	}
	if a.Delay != nil {
		if a.Drop != 0 {
			return fmt.Errorf("affect_receive: topic %q: delay and drop are mutually exclusive", a.Topic)
		}
		if *a.Delay < 0 {
			return fmt.Errorf("affect_receive: topic %q: delay must be non-negative, got %d", a.Topic, *a.Delay)
		}
		return nil
	}
	if a.Drop < 1 {
		return fmt.Errorf("affect_receive: topic %q: drop must be >= 1, got %d", a.Topic, a.Drop)
	}
	return nil
}

// AffectLoopSpec mutates the node's own periodic work: Delay shifts the loop
// phase once by Delay ticks; Drop skips the next Drop firings keeping phase.
type AffectLoopSpec struct {
	Delay int `yaml:"delay"`
	Drop  int `yaml:"drop"`
}

func (a *AffectLoopSpec) validate() error {
	if (a.Delay > 0) == (a.Drop > 0) {
		return fmt.Errorf("affect_loop: exactly one of delay or drop must be positive")
	}
	if a.Delay < 0 || a.Drop < 0 {
		return fmt.Errorf("affect_loop: delay and drop must be non-negative")
	}
	return nil
}

// FaultDirective is the callback-produced fault: publish-side only, targeting
// a topic the acting node itself publishes.
type FaultDirective struct {
	AffectPublish *AffectPublishSpec `yaml:"affect_publish"`
}

func (f *FaultDirective) validate() error {
	if f.AffectPublish == nil {
		return fmt.Errorf("fault directive must carry affect_publish")
	}
	return f.AffectPublish.validate()
}

// FaultConfig is the externally injected fault: exactly one per run, applied
// on the target node at the injection tick before that tick's loop firings
// and receipts.
type FaultConfig struct {
	InjectTo string `yaml:"inject_to"`
	InjectAt int    `yaml:"inject_at"`

	AffectPublish *AffectPublishSpec `yaml:"affect_publish"`
	AffectReceive *AffectReceiveSpec `yaml:"affect_receive"`
	AffectLoop    *AffectLoopSpec    `yaml:"affect_loop"`
	Crash         bool               `yaml:"crash"`
}

// LoadFaultConfig reads a fault config file. Reference checks against the
// graph happen in Validate, preferred at load time over injection time.
func LoadFaultConfig(path string) (*FaultConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fault config %s: %w", path, err)
	}
	var cfg FaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("fault config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fault against the graph it will be injected into.
func (f *FaultConfig) Validate(g *Graph) error {
	if f.InjectTo == "" {
		return fmt.Errorf("fault: inject_to must be provided")
	}
	if f.InjectAt < 0 {
		return fmt.Errorf("fault: inject_at must be non-negative, got %d", f.InjectAt)
	}
	idx, ok := g.NodeIndex(f.InjectTo)
	if !ok {
		return fmt.Errorf("fault: cannot inject to non-existent node %q", f.InjectTo)
	}
	node := g.Nodes[idx]
	nEffects := 0
	if f.AffectPublish != nil {
		nEffects++
		if err := f.AffectPublish.validate(); err != nil {
			return fmt.Errorf("fault: %w", err)
		}
		if pub, ok := g.Publisher(f.AffectPublish.Topic); !ok || pub != idx {
			return fmt.Errorf("fault: cannot inject publish fault to %q: it does not publish to %q",
				f.InjectTo, f.AffectPublish.Topic)
		}
	}
	if f.AffectReceive != nil {
		nEffects++
		if err := f.AffectReceive.validate(); err != nil {
			return fmt.Errorf("fault: %w", err)
		}
		if node.subscription(f.AffectReceive.Topic) == nil {
			return fmt.Errorf("fault: cannot inject receive fault to %q: it does not subscribe to %q",
				f.InjectTo, f.AffectReceive.Topic)
		}
	}
	if f.AffectLoop != nil {
		nEffects++
		if err := f.AffectLoop.validate(); err != nil {
			return fmt.Errorf("fault: %w", err)
		}
		if node.Config.Loop == nil {
			return fmt.Errorf("fault: cannot inject loop fault to node without loop: %q", f.InjectTo)
		}
	}
	if f.Crash {
		nEffects++
	}
	if nEffects != 1 {
		return fmt.Errorf("fault: exactly one of affect_publish, affect_receive, affect_loop or crash must be set")
	}
	return nil
}
