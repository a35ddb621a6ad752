// sim/executor.go
package sim

import (
	"github.com/sirupsen/logrus"
)

// Executor owns the deterministic tick loop. Per tick it applies a due fault
// injection, delivers due messages, fires due loops, ticks watchdogs and
// snapshots every node's feature vector. All callbacks run to completion in
// zero simulated time within the tick that triggered them.
type Executor struct {
	graph    *Graph
	bus      *MessageBus
	sampler  *Sampler
	recorder *FeatureRecorder
	metrics  *Metrics

	stop  int
	fault *FaultConfig // nil when the run is fault-free

	clock int
	done  bool
}

// NewExecutor creates an executor over the graph, running ticks 0 through
// stop inclusive with a single sampler seeded from key.
func NewExecutor(graph *Graph, stop int, key SimulationKey) *Executor {
	return &Executor{
		graph:    graph,
		bus:      NewMessageBus(),
		sampler:  NewSampler(key),
		recorder: NewFeatureRecorder(),
		metrics:  NewMetrics(),
		stop:     stop,
	}
}

// InjectFault arms the external fault for this run. injectAt is the effective
// injection tick: the CLI override when given, the config's inject_at
// otherwise. The config is rewritten to the effective tick so that the fault
// label and crash accounting agree with what actually happened.
func (ex *Executor) InjectFault(f *FaultConfig, injectAt int) {
	f.InjectAt = injectAt
	ex.fault = f
}

// Fault returns the armed fault config, nil for a fault-free run.
func (ex *Executor) Fault() *FaultConfig { return ex.fault }

// Graph returns the graph under simulation.
func (ex *Executor) Graph() *Graph { return ex.graph }

// Recorder returns the per-tick feature recorder.
func (ex *Executor) Recorder() *FeatureRecorder { return ex.recorder }

// Metrics returns the run's aggregate counters.
func (ex *Executor) Metrics() *Metrics { return ex.metrics }

// Clock returns the current tick.
func (ex *Executor) Clock() int { return ex.clock }

// Run executes the remaining ticks to completion.
func (ex *Executor) Run() {
	for ex.Step() {
	}
}

// Step executes one tick and reports whether more ticks remain. Used by the
// visualizer to advance one tick per animation frame.
func (ex *Executor) Step() bool {
	if ex.done {
		return false
	}
	tick := ex.clock
	logrus.Infof("[tick %07d] begin", tick)
	ex.step(tick)
	ex.metrics.TicksSimulated++
	if tick >= ex.stop {
		ex.done = true
		ex.finalize()
		return false
	}
	ex.clock++
	return true
}

// step runs one tick in the fixed order: injection, receipts, loops,
// watchdogs, snapshot. Receipts are drained again before each node's loop
// and after the last one, so a zero-delay publication is classified within
// the tick it was published.
func (ex *Executor) step(tick int) {
	if ex.fault != nil && tick == ex.fault.InjectAt {
		ex.applyInjection(tick)
	}
	ex.deliverDue(tick)
	for _, node := range ex.graph.Nodes {
		ex.deliverDue(tick)
		if node.Config.Loop == nil || node.nextLoopTick != tick {
			continue
		}
		if node.Crashed(tick) {
			logrus.Infof("[tick %07d] node %s crashed, dropped loop", tick, node.Config.Name)
			continue
		}
		if node.consumeDropEvent() {
			node.nextLoopTick += node.Config.Loop.Period
			logrus.Warnf("[tick %07d] node %s is stuck, dropped loop", tick, node.Config.Name)
			continue
		}
		ex.fireLoop(tick, node)
	}
	for ex.bus.HasDue(tick) {
		ex.deliverDue(tick)
	}
	for _, node := range ex.graph.Nodes {
		if node.Crashed(tick) {
			continue
		}
		for _, cb := range node.watchdogTick() {
			ex.metrics.LostInputEvents++
			logrus.Warnf("[tick %07d] node %s lost input", tick, node.Config.Name)
			if cb != nil {
				ex.executeCallback(tick, node, cb)
			}
		}
	}
	ex.recorder.Snapshot(tick, ex.graph.Nodes)
}

// applyInjection installs the external fault before this tick's loop firings
// and receipts.
func (ex *Executor) applyInjection(tick int) {
	idx, _ := ex.graph.NodeIndex(ex.fault.InjectTo)
	node := ex.graph.Nodes[idx]
	wasCrashed := node.Crashed(tick)
	node.InstallFault(ex.fault)
	if ex.fault.Crash && !wasCrashed {
		ex.metrics.CrashedNodes++
	}
	logrus.Warnf("[tick %07d] injected fault into node %s", tick, node.Config.Name)
}

func (ex *Executor) deliverDue(tick int) {
	for _, d := range ex.bus.DrainDue(tick) {
		ex.deliver(tick, d)
	}
}

// deliver hands one due delivery to its subscriber's node runtime.
func (ex *Executor) deliver(tick int, d *Delivery) {
	node := ex.graph.Nodes[d.Subscriber]
	if node.Crashed(tick) {
		logrus.Infof("[tick %07d] node %s crashed, dropped message from %s", tick, node.Config.Name, d.Topic)
		return
	}
	if node.consumeDropEvent() {
		logrus.Warnf("[tick %07d] node %s is stuck, dropped message from %s", tick, node.Config.Name, d.Topic)
		return
	}
	outcome, cb := node.receive(d.Topic, d.Value)
	switch outcome {
	case receiveDropped:
		ex.metrics.DroppedReceives++
		logrus.Warnf("[tick %07d] node %s dropped received message from %s", tick, node.Config.Name, d.Topic)
		return
	case receiveNominal:
		ex.metrics.Deliveries++
		logrus.Infof("[tick %07d] node %s received %d on %s (nominal)", tick, node.Config.Name, d.Value, d.Topic)
	case receiveInvalid:
		ex.metrics.Deliveries++
		ex.metrics.InvalidInputEvents++
		logrus.Warnf("[tick %07d] node %s received %d on %s (invalid input)", tick, node.Config.Name, d.Value, d.Topic)
	}
	if cb != nil {
		ex.executeCallback(tick, node, cb)
	}
}

// fireLoop advances the loop schedule and executes the loop callback, honoring
// any pending loop fault first.
func (ex *Executor) fireLoop(tick int, node *Node) {
	loop := node.Config.Loop
	if node.loopDelayPending > 0 {
		// One-shot phase shift: the skipped firing re-lands delay ticks out
		// and subsequent firings keep the shifted phase.
		node.nextLoopTick = tick + node.loopDelayPending
		node.loopDelayPending = 0
		logrus.Warnf("[tick %07d] node %s delayed loop to %d", tick, node.Config.Name, node.nextLoopTick)
		return
	}
	node.nextLoopTick += loop.Period
	if node.loopDropRemaining > 0 {
		node.loopDropRemaining--
		logrus.Warnf("[tick %07d] node %s dropped loop", tick, node.Config.Name)
		return
	}
	logrus.Infof("[tick %07d] node %s executing loop callback", tick, node.Config.Name)
	ex.executeCallback(tick, node, &loop.Callback)
}

// executeCallback runs a declarative callback: publish specs in declared
// order, then any fault directive or action.
func (ex *Executor) executeCallback(tick int, node *Node, cb *CallbackSpec) {
	for i := range cb.Publish {
		ex.publish(tick, node, &cb.Publish[i])
	}
	if cb.Fault != nil && cb.Fault.AffectPublish != nil {
		node.setPublishFault(cb.Fault.AffectPublish.Topic, cb.Fault.AffectPublish.state())
		logrus.Warnf("[tick %07d] node %s armed publish fault on %s", tick, node.Config.Name, cb.Fault.AffectPublish.Topic)
	}
	if cb.Action != nil {
		wasCrashed := node.Crashed(tick)
		node.applyAction(tick, cb.Action)
		if cb.Action.Crash && !wasCrashed {
			ex.metrics.CrashedNodes++
			logrus.Warnf("[tick %07d] node %s crashed", tick, node.Config.Name)
		}
		if cb.Action.DropEventFor > 0 {
			logrus.Warnf("[tick %07d] node %s will drop next %d events", tick, node.Config.Name, cb.Action.DropEventFor)
		}
	}
}

// publish samples value and delay, consults the publish-side fault overlay
// and schedules a delivery to every subscriber of the topic. Sampling happens
// before the overlay so suppressed publications still consume RNG draws,
// keeping the sampling sequence independent of fault choice.
func (ex *Executor) publish(tick int, node *Node, spec *PublishSpec) {
	value := ex.sampler.Sample(spec.ValueRange)
	delay := ex.sampler.Sample(spec.DelayRange)

	value, effect := node.applyPublishFault(spec.Topic, value)
	switch effect {
	case publishSuppressed:
		ex.metrics.PublicationsSuppressed++
		logrus.Warnf("[tick %07d] node %s dropped publish to %s", tick, node.Config.Name, spec.Topic)
		return
	case publishOverridden:
		ex.metrics.PublicationsOverridden++
		logrus.Warnf("[tick %07d] node %s overrode publish to %s with %d", tick, node.Config.Name, spec.Topic, value)
	}

	node.recordPublish(spec.Topic, value)
	ex.metrics.PublicationsEmitted++
	for _, subIdx := range ex.graph.Subscribers(spec.Topic) {
		eta := tick + delay + ex.graph.Nodes[subIdx].receiveDelay[spec.Topic]
		ex.bus.Schedule(eta, subIdx, spec.Topic, value)
		logrus.Infof("[tick %07d] node %s publish %d to %s via %s, ETA t=%d",
			tick, node.Config.Name, value, ex.graph.Nodes[subIdx].Config.Name, spec.Topic, eta)
	}
}

func (ex *Executor) finalize() {
	logrus.Infof("[tick %07d] simulation ended", ex.clock)
}
