package nvr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityStoreRegisterDefaults(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "cam_1_motiondetection", Kind: KindBinarySensor})
	s.Register(Entity{UniqueID: "cam_alarm_server_path", Kind: KindSensor})

	e, ok := s.Get("cam_1_motiondetection")
	require.True(t, ok)
	assert.Equal(t, StateOff, e.State)

	e, _ = s.Get("cam_alarm_server_path")
	assert.Equal(t, StateUnknown, e.State)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "cam_1_motiondetection", list[0].UniqueID)
	assert.Equal(t, "cam_alarm_server_path", list[1].UniqueID)
}

func TestEntityStoreReRegisterKeepsState(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "a", Kind: KindBinarySensor, Name: "Old"})
	s.SetOn("a", true)

	s.Register(Entity{UniqueID: "a", Kind: KindBinarySensor, Name: "New"})

	e, _ := s.Get("a")
	assert.Equal(t, "New", e.Name)
	assert.Equal(t, StateOn, e.State)
	assert.Len(t, s.List(), 1)
}

func TestEntityStoreSetOnReportsChange(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "a", Kind: KindBinarySensor})

	var mu sync.Mutex
	var seen []string
	s.OnChange(func(e Entity) {
		mu.Lock()
		seen = append(seen, e.UniqueID+"="+e.State)
		mu.Unlock()
	})

	assert.True(t, s.SetOn("a", true))
	assert.False(t, s.SetOn("a", true))
	assert.True(t, s.IsOn("a"))
	assert.True(t, s.SetOn("a", false))
	assert.False(t, s.SetOn("missing", true))

	assert.Equal(t, []string{"a=on", "a=off"}, seen)
}

func TestEntityStoreListenerCanReadStore(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "a", Kind: KindBinarySensor})

	var state string
	s.OnChange(func(e Entity) {
		got, _ := s.Get(e.UniqueID)
		state = got.State
	})
	s.SetOn("a", true)

	assert.Equal(t, StateOn, state)
}

func TestEntityStoreListenerAddedDuringChange(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "a", Kind: KindBinarySensor})

	var first, late int
	s.OnChange(func(e Entity) {
		first++
		if first == 1 {
			s.OnChange(func(Entity) { late++ })
		}
	})

	s.SetOn("a", true)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, late)

	s.SetOn("a", false)
	assert.Equal(t, 2, first)
	assert.Equal(t, 1, late)
}

func TestEntityStoreSetStateAttributes(t *testing.T) {
	s := NewEntityStore()
	s.Register(Entity{UniqueID: "plate", Kind: KindSensor})

	s.SetState("plate", "AB123", map[string]any{"plate_confidence": 90})
	s.SetState("plate", "CD456", nil)

	e, _ := s.Get("plate")
	assert.Equal(t, "CD456", e.State)
	assert.Equal(t, 90, e.Attributes["plate_confidence"])

	// returned copies are detached from the store
	e.Attributes["plate_confidence"] = 1
	again, _ := s.Get("plate")
	assert.Equal(t, 90, again.Attributes["plate_confidence"])
}

func TestRegisterDescriptors(t *testing.T) {
	s := NewEntityStore()
	s.RegisterDescriptors([]EventDescriptor{
		{ID: "linedetection", UniqueID: "x_1_linedetection", Label: "Line Crossing", DeviceClass: "motion"},
		{ID: "linedetection", UniqueID: "x_1_linedetection_human", Label: "Line Crossing (Person)", DeviceClass: "motion", Disabled: true},
	})

	e, ok := s.Get("x_1_linedetection_human")
	require.True(t, ok)
	assert.Equal(t, KindBinarySensor, e.Kind)
	assert.Equal(t, "Line Crossing (Person)", e.Name)
	assert.True(t, e.Disabled)
	assert.Equal(t, StateOff, e.State)
}
