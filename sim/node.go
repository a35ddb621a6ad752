// sim/node.go
package sim

// FeatureWidth is the fixed width of the per-node feature vector. Column
// semantics are stable across a run; downstream datasets depend on them.
const FeatureWidth = 9

// Feature vector column indices.
const (
	// FeatureKind is 0 for a publisher-only loop node, 1 for a subscriber or hybrid.
	FeatureKind = iota
	// FeatureNumSubscriptions is the node's subscription count.
	FeatureNumSubscriptions
	// FeatureLastPublished is the last value published on the node's primary
	// output topic, 0 if it never published.
	FeatureLastPublished
	// FeatureTick is the tick this snapshot was taken at. Authoritative
	// per-row timestamp.
	FeatureTick
	// FeatureLastReceived is the most recent value received across all
	// subscriptions, 0 if none.
	FeatureLastReceived
	// FeaturePastWatchdog counts subscriptions currently past their watchdog.
	FeaturePastWatchdog
	// FeaturePublishCount counts publications emitted so far this run.
	FeaturePublishCount
	// FeatureInvalidCount counts invalid-input events observed so far.
	FeatureInvalidCount
	// FeatureLostCount counts lost-input events observed so far.
	FeatureLostCount
)

// receiveOutcome classifies what happened to an inbound delivery.
type receiveOutcome int

const (
	receiveNominal receiveOutcome = iota
	receiveInvalid
	receiveDropped
)

// subscriptionState is the runtime state of one subscription.
type subscriptionState struct {
	spec *SubscribeSpec

	lastValue int
	hasValue  bool

	// ticksSinceRecv counts ticks since the last receipt; reset to 0 on
	// delivery, incremented at each watchdog tick while armed.
	ticksSinceRecv int
	// armed becomes true after the first receipt. Lost-input is detectable
	// only after at least one message, so a subscription that never hears
	// anything never fires lost-input.
	armed bool
	// lostReported latches after a lost-input firing and clears on the next
	// receipt: lost-input fires once per gap, not once per tick past the
	// watchdog.
	lostReported bool
}

func (s *subscriptionState) pastWatchdog() bool {
	return s.armed && s.spec.Watchdog > 0 && s.ticksSinceRecv > s.spec.Watchdog
}

// Node is the per-node state machine. It owns all of its runtime state; the
// Executor mutates it only through receive, loop and watchdog steps.
type Node struct {
	Config *NodeConfig
	// Index is the declaration index; it doubles as the node's identity in
	// the derived edge set and the fault label.
	Index int

	subs       []*subscriptionState
	subByTopic map[string]*subscriptionState

	// nextLoopTick is the tick the periodic loop next fires; -1 without a loop.
	nextLoopTick int

	// publishedTopics lists every topic this node publishes, in spec order.
	// The first one is the node's primary output topic.
	publishedTopics []string
	primaryTopic    string

	publishFaults map[string]*PublishFaultState
	receiveDelay  map[string]int
	receiveDrop   map[string]int

	dropEventBudget   int
	crashTick         int // -1 = never
	loopDelayPending  int
	loopDropRemaining int

	lastPublished int
	lastReceived  int
	publishCount  int
	invalidCount  int
	lostCount     int
}

// NewNode creates the runtime state for one node config at tick 0.
func NewNode(cfg *NodeConfig, index int) *Node {
	n := &Node{
		Config:        cfg,
		Index:         index,
		subByTopic:    make(map[string]*subscriptionState, len(cfg.Subscribe)),
		nextLoopTick:  -1,
		publishFaults: make(map[string]*PublishFaultState),
		receiveDelay:  make(map[string]int),
		receiveDrop:   make(map[string]int),
		crashTick:     -1,
	}
	if cfg.Loop != nil {
		n.nextLoopTick = 0
	}
	for i := range cfg.Subscribe {
		s := &subscriptionState{spec: &cfg.Subscribe[i]}
		n.subs = append(n.subs, s)
		n.subByTopic[s.spec.Topic] = s
	}
	seen := make(map[string]bool)
	addTopics := func(cb *CallbackSpec) {
		if cb == nil {
			return
		}
		for _, pub := range cb.Publish {
			if !seen[pub.Topic] {
				seen[pub.Topic] = true
				n.publishedTopics = append(n.publishedTopics, pub.Topic)
			}
		}
	}
	if cfg.Loop != nil {
		addTopics(&cfg.Loop.Callback)
	}
	for i := range cfg.Subscribe {
		sub := &cfg.Subscribe[i]
		addTopics(sub.NominalCallback)
		addTopics(sub.InvalidInputCallback)
		addTopics(sub.LostInputCallback)
	}
	if len(n.publishedTopics) > 0 {
		n.primaryTopic = n.publishedTopics[0]
	}
	return n
}

func (n *Node) subscription(topic string) *subscriptionState {
	return n.subByTopic[topic]
}

// LastValue returns the most recent value received on topic and whether any
// message has arrived there yet.
func (n *Node) LastValue(topic string) (int, bool) {
	s := n.subByTopic[topic]
	if s == nil || !s.hasValue {
		return 0, false
	}
	return s.lastValue, true
}

// Crashed reports whether the node has crashed at or before tick.
func (n *Node) Crashed(tick int) bool {
	return n.crashTick >= 0 && tick >= n.crashTick
}

// consumeDropEvent spends one unit of the stuck-node budget, if any.
func (n *Node) consumeDropEvent() bool {
	if n.dropEventBudget > 0 {
		n.dropEventBudget--
		return true
	}
	return false
}

// setPublishFault installs a publish-side fault on one of the node's topics.
// An already active fault on that topic is replaced: faults come from
// reactions to current conditions, so last writer wins.
func (n *Node) setPublishFault(topic string, st *PublishFaultState) {
	n.publishFaults[topic] = st
}

// publishEffect is what the active publish-side fault, if any, did to one
// publication.
type publishEffect int

const (
	publishUnaffected publishEffect = iota
	publishSuppressed
	publishOverridden
)

// applyPublishFault consults the active fault for a publication on topic and
// returns the possibly overridden value. The fault counter decays on every
// affected publication and the fault is removed at zero.
func (n *Node) applyPublishFault(topic string, value int) (int, publishEffect) {
	st := n.publishFaults[topic]
	if st == nil {
		return value, publishUnaffected
	}
	st.Remaining--
	if st.Remaining <= 0 {
		delete(n.publishFaults, topic)
	}
	if st.Kind == PublishFaultDrop {
		return value, publishSuppressed
	}
	return st.Value, publishOverridden
}

// recordPublish accounts for one emitted publication.
func (n *Node) recordPublish(topic string, value int) {
	n.publishCount++
	if topic == n.primaryTopic {
		n.lastPublished = value
	}
}

// receive processes one delivery: reset the subscription's watchdog state,
// remember the value, classify it against the valid range and hand back the
// matching callback. A pending receive-drop fault discards the delivery
// before any state updates.
func (n *Node) receive(topic string, value int) (receiveOutcome, *CallbackSpec) {
	if n.receiveDrop[topic] > 0 {
		n.receiveDrop[topic]--
		if n.receiveDrop[topic] == 0 {
			delete(n.receiveDrop, topic)
		}
		return receiveDropped, nil
	}
	s := n.subByTopic[topic]
	s.ticksSinceRecv = 0
	s.armed = true
	s.lostReported = false
	s.lastValue = value
	s.hasValue = true
	n.lastReceived = value

	if s.spec.ValidRange.Contains(value) {
		return receiveNominal, s.spec.NominalCallback
	}
	n.invalidCount++
	return receiveInvalid, s.spec.InvalidInputCallback
}

// watchdogTick advances every armed subscription's receive counter and fires
// lost-input on the first tick the counter strictly exceeds the watchdog.
// Subsequent ticks do not re-fire until another receipt resets the counter.
// Returned callbacks may be nil for subscriptions without a lost handler.
func (n *Node) watchdogTick() []*CallbackSpec {
	var fired []*CallbackSpec
	for _, s := range n.subs {
		if !s.armed {
			continue
		}
		s.ticksSinceRecv++
		if s.spec.Watchdog > 0 && s.ticksSinceRecv > s.spec.Watchdog && !s.lostReported {
			s.lostReported = true
			n.lostCount++
			fired = append(fired, s.spec.LostInputCallback)
		}
	}
	return fired
}

func (n *Node) pastWatchdogCount() int {
	count := 0
	for _, s := range n.subs {
		if s.pastWatchdog() {
			count++
		}
	}
	return count
}

// InstallFault applies an externally injected fault to this node.
func (n *Node) InstallFault(f *FaultConfig) {
	switch {
	case f.AffectPublish != nil:
		n.setPublishFault(f.AffectPublish.Topic, f.AffectPublish.state())
	case f.AffectReceive != nil:
		if f.AffectReceive.Delay != nil {
			// Persists for the run unless a later fault overwrites it.
			n.receiveDelay[f.AffectReceive.Topic] = *f.AffectReceive.Delay
		} else {
			n.receiveDrop[f.AffectReceive.Topic] = f.AffectReceive.Drop
		}
	case f.AffectLoop != nil:
		if f.AffectLoop.Delay > 0 {
			n.loopDelayPending = f.AffectLoop.Delay
		} else {
			n.loopDropRemaining = f.AffectLoop.Drop
		}
	case f.Crash:
		n.crashTick = f.InjectAt
	}
}

// applyAction executes a callback-produced action against the node itself.
func (n *Node) applyAction(tick int, a *ActionSpec) {
	if a.DropEventFor > 0 {
		n.dropEventBudget += a.DropEventFor
	}
	if a.Crash {
		n.crashTick = tick
	}
}

// FeatureVector snapshots the node's observables at tick.
func (n *Node) FeatureVector(tick int) [FeatureWidth]int {
	var f [FeatureWidth]int
	if len(n.subs) > 0 {
		f[FeatureKind] = 1
	}
	f[FeatureNumSubscriptions] = len(n.subs)
	f[FeatureLastPublished] = n.lastPublished
	f[FeatureTick] = tick
	f[FeatureLastReceived] = n.lastReceived
	f[FeaturePastWatchdog] = n.pastWatchdogCount()
	f[FeaturePublishCount] = n.publishCount
	f[FeatureInvalidCount] = n.invalidCount
	f[FeatureLostCount] = n.lostCount
	return f
}
