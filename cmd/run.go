package cmd

import (
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/graphsim/graphsim/sim"
	"github.com/graphsim/graphsim/sim/viz"
)

var (
	graphPath         string // Graph config file
	stopTick          int    // Terminal tick (inclusive)
	seed              int64  // Seed for value and delay sampling
	logLevel          string // Log verbosity level
	nodeFeatureOutput string // Per-tick feature rows CSV
	edgeIndexOutput   string // Edge index CSV
	faultPath         string // Fault config file
	faultLabelOutput  string // Fault label line
	injectAtOverride  int    // Override for the fault's own inject_at
	vizEnabled        bool   // Animate instead of generating tensors
)

// runCmd executes one simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if vizEnabled && (nodeFeatureOutput != "" || edgeIndexOutput != "" || faultLabelOutput != "") {
			logrus.Fatalf("--viz is mutually exclusive with dataset outputs")
		}
		if faultPath == "" {
			if faultLabelOutput != "" {
				logrus.Fatalf("--fault_label_output requires --fault")
			}
			if cmd.Flags().Changed("inject_at") {
				logrus.Fatalf("--inject_at requires --fault")
			}
		}

		graph, ex := setUpRun(cmd.Flags().Changed("inject_at"))

		if vizEnabled {
			runViz(ex)
			return
		}

		ex.Run()

		if nodeFeatureOutput != "" {
			if err := ex.Recorder().WriteNodeFeatures(nodeFeatureOutput); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if edgeIndexOutput != "" {
			if err := sim.WriteEdgeIndex(edgeIndexOutput, graph); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if faultLabelOutput != "" {
			fault := ex.Fault()
			idx, _ := graph.NodeIndex(fault.InjectTo)
			if err := sim.WriteFaultLabel(faultLabelOutput, idx, fault.InjectAt); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		ex.Metrics().Print()
	},
}

// setUpRun loads and validates the configs and arms the executor for the run
// command; all validation failures are fatal before tick 0.
func setUpRun(overrideInjectAt bool) (*sim.Graph, *sim.Executor) {
	cfg, err := sim.LoadGraphConfig(graphPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	graph, err := sim.BuildGraph(cfg)
	if err != nil {
		logrus.Fatalf("graph config %s: %v", graphPath, err)
	}
	if cycles := graph.Cycles(); len(cycles) > 0 {
		logrus.Infof("graph contains %d feedback cycle group(s)", len(cycles))
	}

	logrus.Infof("Executing graph with %d nodes to tick %d, seed=%d", len(graph.Nodes), stopTick, seed)

	ex := sim.NewExecutor(graph, stopTick, sim.NewSimulationKey(seed))
	if faultPath != "" {
		fault, err := sim.LoadFaultConfig(faultPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := fault.Validate(graph); err != nil {
			logrus.Fatalf("fault config %s: %v", faultPath, err)
		}
		at := fault.InjectAt
		if overrideInjectAt {
			at = injectAtOverride
		}
		ex.InjectFault(fault, at)
	}
	return graph, ex
}

// runViz advances the simulation one tick per animation frame and serves the
// live view until interrupted.
func runViz(ex *sim.Executor) {
	server := viz.NewServer("127.0.0.1:8080")
	server.Start()
	logrus.Warnf("visualization at http://%s", server.Addr())

	edges := make([]viz.Edge, 0)
	for _, e := range ex.Graph().EdgeList() {
		edges = append(edges, viz.Edge{From: e[0], To: e[1]})
	}

	for {
		tick := ex.Clock()
		more := ex.Step()
		server.UpdateFrame(buildFrame(ex, tick, edges, !more))
		if !more {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	// Keep serving the final frame until the user interrupts.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
}

func buildFrame(ex *sim.Executor, tick int, edges []viz.Edge, done bool) *viz.Frame {
	frame := &viz.Frame{Tick: tick, Done: done, Edges: edges}
	for _, node := range ex.Graph().Nodes {
		vec := node.FeatureVector(tick)
		crashed := node.Crashed(tick)
		frame.Nodes = append(frame.Nodes, viz.NodeState{
			Name:         node.Config.Name,
			Faulty:       crashed || vec[sim.FeaturePastWatchdog] > 0,
			Crashed:      crashed,
			LastReceived: vec[sim.FeatureLastReceived],
			PastWatchdog: vec[sim.FeaturePastWatchdog],
			PublishCount: vec[sim.FeaturePublishCount],
			InvalidCount: vec[sim.FeatureInvalidCount],
			LostCount:    vec[sim.FeatureLostCount],
		})
	}
	return frame
}

// init sets up CLI flags and attaches `run` to `root`
func init() {
	runCmd.Flags().StringVar(&graphPath, "graph", "", "Graph config file (required)")
	runCmd.Flags().IntVar(&stopTick, "stop", 100, "Terminal tick, inclusive")
	runCmd.Flags().Int64Var(&seed, "seed", 24, "Seed for value and delay sampling")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&nodeFeatureOutput, "node_feature_output", "", "Where to write per-tick feature rows")
	runCmd.Flags().StringVar(&edgeIndexOutput, "edge_index_output", "", "Where to write the edge index")
	runCmd.Flags().StringVar(&faultPath, "fault", "", "Fault config file")
	runCmd.Flags().StringVar(&faultLabelOutput, "fault_label_output", "", "Where to write the fault label line")
	runCmd.Flags().IntVar(&injectAtOverride, "inject_at", 0, "Override the fault's own inject_at")
	runCmd.Flags().BoolVar(&vizEnabled, "viz", false, "Animate the run instead of generating tensors")
	_ = runCmd.MarkFlagRequired("graph")

	rootCmd.AddCommand(runCmd)
}
