package session

import (
	"testing"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/stretchr/testify/assert"
)

func surfaceEvent(w, h, stride int32, handles int) Event {
	return Event{
		Kind: EventSurface,
		Descriptor: protocol.SurfaceDescriptor{
			Type:   protocol.MsgTypeTextureData,
			Width:  w,
			Height: h,
			PlaneA: [protocol.MaxPlanes]int32{stride},
		},
		Handles: handles,
	}
}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

var mapped1080 = State{Phase: ConnectedMapped, Geometry: protocol.Geometry{Width: 1920, Height: 1080, Stride: 7680}}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    Phase
		effects []EffectKind
	}{
		{
			name:    "accept from idle",
			from:    State{Phase: Idle},
			event:   Event{Kind: EventAccepted},
			want:    ConnectedNoSurface,
			effects: []EffectKind{EffectAdoptPeer, EffectSendHandshake},
		},
		{
			name:    "accept supersedes connected peer",
			from:    State{Phase: ConnectedNoSurface},
			event:   Event{Kind: EventAccepted},
			want:    ConnectedNoSurface,
			effects: []EffectKind{EffectClosePeer, EffectAdoptPeer, EffectSendHandshake},
		},
		{
			name:  "accept supersedes mapped peer",
			from:  mapped1080,
			event: Event{Kind: EventAccepted},
			want:  ConnectedNoSurface,
			effects: []EffectKind{
				EffectClosePeer, EffectReleaseSurface, EffectCloseSurfaceHandle,
				EffectAdoptPeer, EffectSendHandshake,
			},
		},
		{
			name:    "first surface",
			from:    State{Phase: ConnectedNoSurface},
			event:   surfaceEvent(1920, 1080, 7680, 1),
			want:    ConnectedMapped,
			effects: []EffectKind{EffectMapSurface},
		},
		{
			name:    "first surface with extra handles",
			from:    State{Phase: ConnectedNoSurface},
			event:   surfaceEvent(1920, 1080, 7680, 3),
			want:    ConnectedMapped,
			effects: []EffectKind{EffectDiscardHandles, EffectMapSurface},
		},
		{
			name:    "resize",
			from:    mapped1080,
			event:   surfaceEvent(1280, 720, 5120, 1),
			want:    ConnectedMapped,
			effects: []EffectKind{EffectReleaseSurface, EffectCloseSurfaceHandle, EffectMapSurface},
		},
		{
			name:  "surface without handle is a no-op",
			from:  mapped1080,
			event: surfaceEvent(1280, 720, 5120, 0),
			want:  ConnectedMapped,
		},
		{
			name:    "ignored message with handles",
			from:    State{Phase: ConnectedNoSurface},
			event:   Event{Kind: EventIgnored, Handles: 2},
			want:    ConnectedNoSurface,
			effects: []EffectKind{EffectDiscardHandles},
		},
		{
			name:  "ignored message without handles",
			from:  mapped1080,
			event: Event{Kind: EventIgnored},
			want:  ConnectedMapped,
		},
		{
			name:    "map failure",
			from:    mapped1080,
			event:   Event{Kind: EventMapFailed},
			want:    ConnectedNoSurface,
			effects: []EffectKind{EffectDiscardHandles},
		},
		{
			name:    "eof while mapped",
			from:    mapped1080,
			event:   Event{Kind: EventPeerClosed},
			want:    Idle,
			effects: []EffectKind{EffectClosePeer, EffectReleaseSurface, EffectCloseSurfaceHandle},
		},
		{
			name:    "reset while connected",
			from:    State{Phase: ConnectedNoSurface},
			event:   Event{Kind: EventPeerLost},
			want:    Idle,
			effects: []EffectKind{EffectClosePeer},
		},
		{
			name:    "handshake failure",
			from:    State{Phase: ConnectedNoSurface},
			event:   Event{Kind: EventHandshakeFailed},
			want:    Idle,
			effects: []EffectKind{EffectClosePeer},
		},
		{
			name:  "shutdown while idle",
			from:  State{Phase: Idle},
			event: Event{Kind: EventShutdown},
			want:  Idle,
		},
		{
			name:    "shutdown while mapped",
			from:    mapped1080,
			event:   Event{Kind: EventShutdown},
			want:    Idle,
			effects: []EffectKind{EffectClosePeer, EffectReleaseSurface, EffectCloseSurfaceHandle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effects := Transition(tt.from, tt.event)
			assert.Equal(t, tt.want, next.Phase)
			if len(tt.effects) == 0 {
				assert.Empty(t, effects)
			} else {
				assert.Equal(t, tt.effects, kinds(effects))
			}
		})
	}
}

func TestTransitionRecordsGeometry(t *testing.T) {
	next, effects := Transition(mapped1080, surfaceEvent(1280, 720, 5120, 1))

	want := protocol.Geometry{Width: 1280, Height: 720, Stride: 5120}
	assert.Equal(t, want, next.Geometry)
	assert.Equal(t, want, effects[len(effects)-1].Geometry)
}

func TestTransitionDiscardStartsAfterMappedHandle(t *testing.T) {
	_, effects := Transition(State{Phase: ConnectedNoSurface}, surfaceEvent(4, 4, 16, 4))
	assert.Equal(t, Effect{Kind: EffectDiscardHandles, From: 1}, effects[0])

	_, effects = Transition(State{Phase: ConnectedNoSurface}, Event{Kind: EventIgnored, Handles: 4})
	assert.Equal(t, Effect{Kind: EffectDiscardHandles, From: 0}, effects[0])
}

// Release of a mapping is always immediately followed by closing its handle,
// and never happens after a new map in the same transition.
func TestTransitionReleaseOrdering(t *testing.T) {
	states := []State{{Phase: Idle}, {Phase: ConnectedNoSurface}, mapped1080}
	events := []Event{
		{Kind: EventAccepted},
		surfaceEvent(64, 64, 256, 1),
		surfaceEvent(64, 64, 256, 2),
		{Kind: EventIgnored, Handles: 1},
		{Kind: EventPeerClosed},
		{Kind: EventPeerLost},
		{Kind: EventHandshakeFailed},
		{Kind: EventMapFailed},
		{Kind: EventShutdown},
	}

	for _, s := range states {
		for _, ev := range events {
			_, effects := Transition(s, ev)
			ks := kinds(effects)
			mapAt := -1
			for i, k := range ks {
				switch k {
				case EffectReleaseSurface:
					if assert.Less(t, i+1, len(ks)) {
						assert.Equal(t, EffectCloseSurfaceHandle, ks[i+1])
					}
					assert.Equal(t, -1, mapAt, "release after map in %v on %v", s.Phase, ev.Kind)
				case EffectCloseSurfaceHandle:
					if assert.Greater(t, i, 0) {
						assert.Equal(t, EffectReleaseSurface, ks[i-1])
					}
				case EffectMapSurface:
					mapAt = i
				}
			}
		}
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "connected", ConnectedNoSurface.String())
	assert.Equal(t, "mapped", ConnectedMapped.String())
	assert.Equal(t, "map-surface", EffectMapSurface.String())
}
