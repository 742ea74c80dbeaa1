package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

type failingOutput struct {
	Memory
	startErr error
	sendErr  error
}

func (f *failingOutput) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	return f.Memory.Start()
}

func (f *failingOutput) Send(msg midi.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	return f.Memory.Send(msg)
}

func (f *failingOutput) Name() string { return "failing" }

func TestMemory_RecordsInOrder(t *testing.T) {
	m := NewMemory()

	err := m.Send(midi.ControlChange(0, 1, 2))
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	require.NoError(t, m.Send(midi.ControlChange(0, 1, 10)))
	require.NoError(t, m.Send(midi.ControlChange(0, 2, 20)))

	got := m.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, []byte{0xB0, 1, 10}, []byte(got[0]))
	assert.Equal(t, []byte{0xB0, 2, 20}, []byte(got[1]))

	m.Reset()
	assert.Empty(t, m.Messages())

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
}

func TestFanout_SendsToAll(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	f := NewFanout(a, b)

	require.NoError(t, f.Start())
	assert.True(t, f.IsRunning())
	assert.Equal(t, "fanout(memory, memory)", f.Name())

	require.NoError(t, f.Send(midi.ControlChange(0, 7, 64)))
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)

	require.NoError(t, f.Stop())
	assert.False(t, a.IsRunning())
	assert.False(t, b.IsRunning())
}

func TestFanout_SendContinuesAfterError(t *testing.T) {
	sendErr := errors.New("port gone")
	bad := &failingOutput{sendErr: sendErr}
	good := NewMemory()
	f := NewFanout(bad, good)

	require.NoError(t, f.Start())

	err := f.Send(midi.ControlChange(0, 1, 1))
	assert.ErrorIs(t, err, sendErr)
	assert.Len(t, good.Messages(), 1)
}

func TestFanout_StartRollsBack(t *testing.T) {
	first := NewMemory()
	bad := &failingOutput{startErr: errors.New("busy")}
	f := NewFanout(first, bad)

	err := f.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, first.IsRunning())
}

func TestFanout_EmptyIsNotRunning(t *testing.T) {
	assert.False(t, NewFanout().IsRunning())
}

func TestPickPort(t *testing.T) {
	names := []string{"Midi Through:Port-0", "USB Uno MIDI Interface", "FLUID Synth"}

	tests := []struct {
		name   string
		names  []string
		want   string
		index  int
		picked bool
	}{
		{name: "empty picks first", names: names, want: "", index: 0, picked: true},
		{name: "substring", names: names, want: "uno", index: 1, picked: true},
		{name: "case insensitive", names: names, want: "fluid", index: 2, picked: true},
		{name: "no match", names: names, want: "korg", picked: false},
		{name: "no ports", names: nil, want: "", picked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, ok := PickPort(tt.names, tt.want)
			assert.Equal(t, tt.picked, ok)
			if ok {
				assert.Equal(t, tt.index, i)
			}
		})
	}
}
