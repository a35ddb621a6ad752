package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/graphsim/graphsim/sim"
)

var (
	sweepGraphPath  string
	sweepFaultPath  string
	sweepStopTick   int
	sweepSeed       int64
	sweepOutDir     string
	sweepInjectFrom int
	sweepInjectTo   int
	sweepInjectStep int
	sweepLogLevel   string
)

// sweepCmd runs the same graph/fault pair repeatedly, varying the injection
// tick, and writes one dataset per injection tick plus a single edge index.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Generate a dataset by sweeping the fault injection tick",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(sweepLogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", sweepLogLevel)
		}
		logrus.SetLevel(level)

		if sweepInjectStep < 1 {
			logrus.Fatalf("--inject_step must be >= 1, got %d", sweepInjectStep)
		}
		if sweepInjectTo < sweepInjectFrom {
			logrus.Fatalf("--inject_to must be >= --inject_from")
		}

		cfg, err := sim.LoadGraphConfig(sweepGraphPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fault, err := sim.LoadFaultConfig(sweepFaultPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := os.MkdirAll(sweepOutDir, 0o755); err != nil {
			logrus.Fatalf("output dir %s: %v", sweepOutDir, err)
		}

		// The edge index depends only on the graph, so one copy serves the
		// whole sweep.
		wroteEdgeIndex := false
		for at := sweepInjectFrom; at <= sweepInjectTo; at += sweepInjectStep {
			graph, err := sim.BuildGraph(cfg)
			if err != nil {
				logrus.Fatalf("graph config %s: %v", sweepGraphPath, err)
			}
			if err := fault.Validate(graph); err != nil {
				logrus.Fatalf("fault config %s: %v", sweepFaultPath, err)
			}

			runFault := *fault
			ex := sim.NewExecutor(graph, sweepStopTick, sim.NewSimulationKey(sweepSeed))
			ex.InjectFault(&runFault, at)
			ex.Run()

			features := filepath.Join(sweepOutDir, fmt.Sprintf("node_feature_inject_at_%d.csv", at))
			if err := ex.Recorder().WriteNodeFeatures(features); err != nil {
				logrus.Fatalf("%v", err)
			}
			label := filepath.Join(sweepOutDir, fmt.Sprintf("fault_label_inject_at_%d.csv", at))
			idx, _ := graph.NodeIndex(runFault.InjectTo)
			if err := sim.WriteFaultLabel(label, idx, runFault.InjectAt); err != nil {
				logrus.Fatalf("%v", err)
			}
			if !wroteEdgeIndex {
				if err := sim.WriteEdgeIndex(filepath.Join(sweepOutDir, "edge_index.csv"), graph); err != nil {
					logrus.Fatalf("%v", err)
				}
				wroteEdgeIndex = true
			}
			logrus.Warnf("sweep: inject_at=%d done", at)
		}
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepGraphPath, "graph", "", "Graph config file (required)")
	sweepCmd.Flags().StringVar(&sweepFaultPath, "fault", "", "Fault config file (required)")
	sweepCmd.Flags().IntVar(&sweepStopTick, "stop", 100, "Terminal tick, inclusive")
	sweepCmd.Flags().Int64Var(&sweepSeed, "seed", 24, "Seed for value and delay sampling")
	sweepCmd.Flags().StringVar(&sweepOutDir, "out", ".", "Directory for the generated dataset")
	sweepCmd.Flags().IntVar(&sweepInjectFrom, "inject_from", 0, "First injection tick")
	sweepCmd.Flags().IntVar(&sweepInjectTo, "inject_to", 0, "Last injection tick, inclusive")
	sweepCmd.Flags().IntVar(&sweepInjectStep, "inject_step", 1, "Injection tick stride")
	sweepCmd.Flags().StringVar(&sweepLogLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	_ = sweepCmd.MarkFlagRequired("graph")
	_ = sweepCmd.MarkFlagRequired("fault")

	rootCmd.AddCommand(sweepCmd)
}
