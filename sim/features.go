// sim/features.go
package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// FeatureRecorder buffers one row per tick: the concatenation of
// name,f0..f8 records for every node in declaration order. Rows are held in
// memory and written only at termination, so a fatal error leaves no partial
// output file behind.
type FeatureRecorder struct {
	rows [][]string
}

// NewFeatureRecorder creates an empty recorder.
func NewFeatureRecorder() *FeatureRecorder {
	return &FeatureRecorder{}
}

// Snapshot records the feature vector of every node at tick.
func (r *FeatureRecorder) Snapshot(tick int, nodes []*Node) {
	row := make([]string, 0, len(nodes)*(FeatureWidth+1))
	for _, node := range nodes {
		row = append(row, node.Config.Name)
		vec := node.FeatureVector(tick)
		for _, v := range vec {
			row = append(row, strconv.Itoa(v))
		}
	}
	r.rows = append(r.rows, row)
}

// Rows returns the buffered per-tick rows.
func (r *FeatureRecorder) Rows() [][]string {
	return r.rows
}

// WriteNodeFeatures writes the buffered rows as headerless CSV.
func (r *FeatureRecorder) WriteNodeFeatures(path string) error {
	return writeCSV(path, r.rows)
}

// WriteEdgeIndex writes the derived edge index as headerless CSV, one
// publisher_index,subscriber_index pair per line. The edge index depends
// only on the graph config, never on the injected fault.
func WriteEdgeIndex(path string, g *Graph) error {
	var rows [][]string
	for _, e := range g.EdgeList() {
		rows = append(rows, []string{strconv.Itoa(e[0]), strconv.Itoa(e[1])})
	}
	return writeCSV(path, rows)
}

// WriteFaultLabel writes the single node_index,inject_at line identifying
// the run's injected fault.
func WriteFaultLabel(path string, nodeIndex, injectAt int) error {
	rows := [][]string{{strconv.Itoa(nodeIndex), strconv.Itoa(injectAt)}}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
