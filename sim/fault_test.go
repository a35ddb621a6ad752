package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dropFaultYAML = `
inject_to: A
inject_at: 5
affect_publish:
  topic: topic1
  drop: 2
`

const delayFaultYAML = `
inject_to: B
inject_at: 5
affect_receive:
  topic: topic1
  delay: 3
`

func TestLoadFaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dropFaultYAML), 0o644))

	f, err := LoadFaultConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "A", f.InjectTo)
	assert.Equal(t, 5, f.InjectAt)
	require.NotNil(t, f.AffectPublish)
	assert.Equal(t, "topic1", f.AffectPublish.Topic)
	assert.Equal(t, 2, f.AffectPublish.Drop)
	assert.Nil(t, f.AffectPublish.Value)
}

func TestLoadFaultConfig_ReceiveDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(delayFaultYAML), 0o644))

	f, err := LoadFaultConfig(path)
	require.NoError(t, err)
	require.NotNil(t, f.AffectReceive)
	require.NotNil(t, f.AffectReceive.Delay)
	assert.Equal(t, 3, *f.AffectReceive.Delay)
}

func TestFaultConfigValidate(t *testing.T) {
	g := buildTestGraph(t,
		loopNode("A", 10, pubSpec("topic1", 0, 10, 0, 0)),
		subNode("B", subSpec("topic1", 0, 10, 5)),
	)

	cases := []struct {
		name    string
		fault   FaultConfig
		wantErr string
	}{
		{
			"unknown node",
			FaultConfig{InjectTo: "X", InjectAt: 0, Crash: true},
			"non-existent node",
		},
		{
			"publish fault on non-publisher",
			FaultConfig{InjectTo: "B", InjectAt: 0,
				AffectPublish: &AffectPublishSpec{Topic: "topic1", Drop: 1}},
			"does not publish",
		},
		{
			"receive fault on non-subscriber",
			FaultConfig{InjectTo: "A", InjectAt: 0,
				AffectReceive: &AffectReceiveSpec{Topic: "topic1", Delay: intp(3)}},
			"does not subscribe",
		},
		{
			"loop fault on loop-less node",
			FaultConfig{InjectTo: "B", InjectAt: 0,
				AffectLoop: &AffectLoopSpec{Drop: 1}},
			"without loop",
		},
		{
			"no effect",
			FaultConfig{InjectTo: "A", InjectAt: 0},
			"exactly one",
		},
		{
			"negative inject_at",
			FaultConfig{InjectTo: "A", InjectAt: -1, Crash: true},
			"non-negative",
		},
		{
			"drop and value together",
			FaultConfig{InjectTo: "A", InjectAt: 0,
				AffectPublish: &AffectPublishSpec{Topic: "topic1", Drop: 1, Value: intp(9), Count: 1}},
			"mutually exclusive",
		},
		{
			"override without count",
			FaultConfig{InjectTo: "A", InjectAt: 0,
				AffectPublish: &AffectPublishSpec{Topic: "topic1", Value: intp(9)}},
			"count must be >= 1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fault.Validate(g)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	valid := FaultConfig{InjectTo: "A", InjectAt: 5,
		AffectPublish: &AffectPublishSpec{Topic: "topic1", Drop: 2}}
	assert.NoError(t, valid.Validate(g))
}

func TestAffectPublishSpec_State(t *testing.T) {
	drop := AffectPublishSpec{Topic: "t", Drop: 3}
	st := drop.state()
	assert.Equal(t, PublishFaultDrop, st.Kind)
	assert.Equal(t, 3, st.Remaining)

	override := AffectPublishSpec{Topic: "t", Value: intp(42), Count: 2}
	st = override.state()
	assert.Equal(t, PublishFaultOverride, st.Kind)
	assert.Equal(t, 42, st.Value)
	assert.Equal(t, 2, st.Remaining)
}
