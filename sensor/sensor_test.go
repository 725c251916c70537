package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorjacobs/go-remotethermo/coordinator"
)

type fakeSource struct {
	snapshot coordinator.Snapshot
	ok       bool
}

func (f *fakeSource) Get(paramID string) (coordinator.Param, bool) {
	p, ok := f.snapshot[paramID]
	return p, ok
}

func (f *fakeSource) LastUpdateSuccess() bool {
	return f.ok
}

func TestSensorReportsRecord(t *testing.T) {
	source := &fakeSource{ok: true, snapshot: coordinator.Snapshot{
		"T8_3_0": {"id": "T8_3_0", "value": 42, "unitLabel": "°C", "label": "  Flow temperature ", "decimals": 1, "readOnly": true},
	}}

	s := New("12345", "T8_3_0", source)

	value, ok := s.NativeValue()
	require.True(t, ok)
	assert.Equal(t, 42, value)
	assert.Equal(t, "°C", s.Unit())
	assert.Equal(t, "Flow temperature", s.Name())
	assert.Equal(t, "nti_remotethermo_12345_T8_3_0", s.UniqueID())
	assert.Equal(t, "measurement", s.StateClass())
	assert.True(t, s.Available())

	attrs := s.Attributes()
	assert.Equal(t, "T8_3_0", attrs["param_id"])
	assert.Equal(t, 1, attrs["decimals"])
	assert.Equal(t, true, attrs["readOnly"])
	assert.Nil(t, attrs["min"])
	assert.Len(t, attrs, 7)
}

func TestSensorMissingFromSnapshot(t *testing.T) {
	s := New("12345", "T8_7_9", &fakeSource{})

	value, ok := s.NativeValue()
	assert.False(t, ok)
	assert.Nil(t, value)
	assert.Empty(t, s.Unit())
	assert.Equal(t, "NTI T8_7_9", s.Name())
	assert.Equal(t, s.FallbackName(), s.Name())
	assert.Empty(t, s.Attributes())
	assert.False(t, s.Available())
}

func TestSensorBlankLabelAndUnit(t *testing.T) {
	source := &fakeSource{snapshot: coordinator.Snapshot{
		"A": {"id": "A", "value": "on", "label": "   ", "unitLabel": " "},
		"B": {"id": "B", "value": 1, "label": 5, "unitLabel": 3},
	}}

	a := New("1", "A", source)
	assert.Equal(t, "A", a.Name())
	assert.Empty(t, a.Unit())

	b := New("1", "B", source)
	assert.Equal(t, "B", b.Name())
	assert.Empty(t, b.Unit())
}

func TestFromParamIDs(t *testing.T) {
	sensors := FromParamIDs("1", []string{"A", "B", "C"}, &fakeSource{})
	require.Len(t, sensors, 3)

	for i, id := range []string{"A", "B", "C"} {
		assert.Equal(t, id, sensors[i].ParamID())
	}
}
