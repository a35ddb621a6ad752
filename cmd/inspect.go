package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/graphsim/graphsim/sim"
)

var inspectGraphPath string

// inspectCmd prints the derived structure of a graph config: nodes with
// their declaration indices, topics with publishers and subscribers, edges,
// and feedback cycles.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the derived structure of a graph config",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := sim.LoadGraphConfig(inspectGraphPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		graph, err := sim.BuildGraph(cfg)
		if err != nil {
			logrus.Fatalf("graph config %s: %v", inspectGraphPath, err)
		}

		fmt.Printf("Nodes (%d):\n", len(graph.Nodes))
		for _, node := range graph.Nodes {
			kind := "subscriber"
			if node.Config.Loop != nil {
				kind = fmt.Sprintf("loop period=%d", node.Config.Loop.Period)
				if len(node.Config.Subscribe) > 0 {
					kind += ", subscriber"
				}
			}
			fmt.Printf("  [%d] %s (%s, %d subscriptions)\n",
				node.Index, node.Config.Name, kind, len(node.Config.Subscribe))
		}

		fmt.Println("Topics:")
		for _, topic := range graph.Topics() {
			pub, _ := graph.Publisher(topic)
			subs := graph.Subscribers(topic)
			names := make([]string, 0, len(subs))
			for _, s := range subs {
				names = append(names, graph.Nodes[s].Config.Name)
			}
			fmt.Printf("  %s: %s -> [%s]\n", topic, graph.Nodes[pub].Config.Name, strings.Join(names, ", "))
		}

		fmt.Println("Edges (publisher_index,subscriber_index):")
		for _, e := range graph.EdgeList() {
			fmt.Printf("  %d,%d\n", e[0], e[1])
		}

		if cycles := graph.Cycles(); len(cycles) > 0 {
			fmt.Printf("Feedback cycles (%d):\n", len(cycles))
			for _, c := range cycles {
				fmt.Printf("  %s\n", strings.Join(c, " -> "))
			}
		}
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectGraphPath, "graph", "", "Graph config file (required)")
	_ = inspectCmd.MarkFlagRequired("graph")

	rootCmd.AddCommand(inspectCmd)
}
