package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicGraphYAML = `
nodes:
  - name: perception
    loop:
      period: 10
      callback:
        publish:
          - topic: camera
            value_range: [0, 10]
            delay_range: [0, 2]
  - name: planner
    subscribe:
      - topic: camera
        valid_range: [0, 10]
        watchdog: 15
        nominal_callback:
          publish:
            - topic: plan
              value_range: [1, 5]
              delay_range: [0, 0]
        invalid_input_callback:
          fault:
            affect_publish:
              topic: plan
              drop: 2
        lost_input_callback:
          action:
            crash: true
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGraphConfig_Basic(t *testing.T) {
	cfg, err := LoadGraphConfig(writeTempConfig(t, basicGraphYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Nodes, 2)

	perception := cfg.Nodes[0]
	assert.Equal(t, "perception", perception.Name)
	require.NotNil(t, perception.Loop)
	assert.Equal(t, 10, perception.Loop.Period)
	require.Len(t, perception.Loop.Callback.Publish, 1)
	assert.Equal(t, PublishSpec{
		Topic:      "camera",
		ValueRange: Range{0, 10},
		DelayRange: Range{0, 2},
	}, perception.Loop.Callback.Publish[0])

	planner := cfg.Nodes[1]
	require.Len(t, planner.Subscribe, 1)
	sub := planner.Subscribe[0]
	assert.Equal(t, "camera", sub.Topic)
	assert.Equal(t, Range{0, 10}, sub.ValidRange)
	assert.Equal(t, 15, sub.Watchdog)
	require.NotNil(t, sub.NominalCallback)
	require.NotNil(t, sub.InvalidInputCallback)
	require.NotNil(t, sub.InvalidInputCallback.Fault)
	assert.Equal(t, 2, sub.InvalidInputCallback.Fault.AffectPublish.Drop)
	require.NotNil(t, sub.LostInputCallback)
	require.NotNil(t, sub.LostInputCallback.Action)
	assert.True(t, sub.LostInputCallback.Action.Crash)
}

func TestLoadGraphConfig_MissingFile(t *testing.T) {
	_, err := LoadGraphConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadGraphConfig_MalformedYAML(t *testing.T) {
	_, err := LoadGraphConfig(writeTempConfig(t, "nodes: ["))
	assert.Error(t, err)
}

func TestGraphConfigValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		cfg  GraphConfig
	}{
		{"empty config", GraphConfig{}},
		{"unnamed node", GraphConfig{Nodes: []NodeConfig{
			loopNode("", 10, pubSpec("t", 0, 1, 0, 0)),
		}}},
		{"duplicate node name", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			loopNode("a", 10, pubSpec("u", 0, 1, 0, 0)),
		}}},
		{"node without loop or subscription", GraphConfig{Nodes: []NodeConfig{
			{Name: "a"},
		}}},
		{"zero loop period", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 0, pubSpec("t", 0, 1, 0, 0)),
		}}},
		{"value_range out of order", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 5, 2, 0, 0)),
		}}},
		{"delay_range out of order", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 3, 1)),
		}}},
		{"negative delay", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, -1, 0)),
		}}},
		{"valid_range out of order", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			subNode("b", subSpec("t", 9, 3, 0)),
		}}},
		{"negative watchdog", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			subNode("b", subSpec("t", 0, 9, -2)),
		}}},
		{"duplicate subscription topic", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			subNode("b", subSpec("t", 0, 9, 0), subSpec("t", 0, 9, 0)),
		}}},
		{"callback with fault and action", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			{Name: "b", Subscribe: []SubscribeSpec{{
				Topic:      "t",
				ValidRange: Range{0, 9},
				InvalidInputCallback: &CallbackSpec{
					Fault:  &FaultDirective{AffectPublish: &AffectPublishSpec{Topic: "t", Drop: 1}},
					Action: &ActionSpec{Crash: true},
				},
			}}},
		}}},
		{"fault directive without affect_publish", GraphConfig{Nodes: []NodeConfig{
			loopNode("a", 10, pubSpec("t", 0, 1, 0, 0)),
			{Name: "b", Subscribe: []SubscribeSpec{{
				Topic:                "t",
				ValidRange:           Range{0, 9},
				InvalidInputCallback: &CallbackSpec{Fault: &FaultDirective{}},
			}}},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestGraphConfigValidate_Accepts(t *testing.T) {
	cfg := GraphConfig{Nodes: []NodeConfig{
		loopNode("a", 1, pubSpec("t", 0, 0, 0, 0)),
		subNode("b", subSpec("t", 0, 0, 1)),
	}}
	assert.NoError(t, cfg.Validate())
}
