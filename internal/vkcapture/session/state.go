package session

import (
	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
)

// Phase of a receiver session.
type Phase uint8

const (
	// Idle has no producer attached.
	Idle Phase = iota
	// ConnectedNoSurface has a producer but nothing mapped.
	ConnectedNoSurface
	// ConnectedMapped has a producer and exactly one mapped surface.
	ConnectedMapped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case ConnectedNoSurface:
		return "connected"
	case ConnectedMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// State is the complete value the transition function acts on.
type State struct {
	Phase    Phase
	Geometry protocol.Geometry // meaningful in ConnectedMapped only
}

// EventKind enumerates what can happen to a session.
type EventKind uint8

const (
	// EventAccepted: a new producer connection is pending adoption.
	EventAccepted EventKind = iota
	// EventSurface: a texture-data message arrived with Handles descriptors.
	EventSurface
	// EventIgnored: a message that is not texture data arrived with Handles
	// descriptors.
	EventIgnored
	// EventPeerClosed: orderly end of stream.
	EventPeerClosed
	// EventPeerLost: reset, broken pipe or other I/O failure on receive.
	EventPeerLost
	// EventHandshakeFailed: the hello could not be delivered.
	EventHandshakeFailed
	// EventMapFailed: the surface announced last could not be mapped.
	EventMapFailed
	// EventShutdown: the receiver is exiting.
	EventShutdown
)

// Event is an input to Transition.
type Event struct {
	Kind       EventKind
	Descriptor protocol.SurfaceDescriptor
	Handles    int
}

// EffectKind enumerates side effects the executor must perform, in order.
type EffectKind uint8

const (
	// EffectClosePeer closes the current producer connection.
	EffectClosePeer EffectKind = iota
	// EffectReleaseSurface unmaps the current surface and keeps its handle
	// for EffectCloseSurfaceHandle.
	EffectReleaseSurface
	// EffectCloseSurfaceHandle closes the handle of the released surface.
	EffectCloseSurfaceHandle
	// EffectAdoptPeer makes the pending connection current.
	EffectAdoptPeer
	// EffectSendHandshake sends the hello to the current peer.
	EffectSendHandshake
	// EffectDiscardHandles closes received handles from index From onward.
	EffectDiscardHandles
	// EffectMapSurface maps received handle 0 with Geometry.
	EffectMapSurface
)

func (k EffectKind) String() string {
	switch k {
	case EffectClosePeer:
		return "close-peer"
	case EffectReleaseSurface:
		return "release-surface"
	case EffectCloseSurfaceHandle:
		return "close-surface-handle"
	case EffectAdoptPeer:
		return "adopt-peer"
	case EffectSendHandshake:
		return "send-handshake"
	case EffectDiscardHandles:
		return "discard-handles"
	case EffectMapSurface:
		return "map-surface"
	default:
		return "unknown"
	}
}

// Effect is one side effect produced by Transition.
type Effect struct {
	Kind     EffectKind
	From     int
	Geometry protocol.Geometry
}

// Transition computes the next state and the ordered effects that get there.
// It performs no I/O.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventAccepted:
		effects := teardown(s)
		effects = append(effects,
			Effect{Kind: EffectAdoptPeer},
			Effect{Kind: EffectSendHandshake},
		)
		return State{Phase: ConnectedNoSurface}, effects

	case EventSurface:
		if s.Phase == Idle {
			return s, discard(ev.Handles, 0)
		}
		if ev.Handles == 0 {
			return s, nil
		}
		var effects []Effect
		if s.Phase == ConnectedMapped {
			effects = append(effects, releaseSurface()...)
		}
		effects = append(effects, discard(ev.Handles, 1)...)
		g := ev.Descriptor.Geometry()
		effects = append(effects, Effect{Kind: EffectMapSurface, Geometry: g})
		return State{Phase: ConnectedMapped, Geometry: g}, effects

	case EventIgnored:
		return s, discard(ev.Handles, 0)

	case EventMapFailed:
		if s.Phase != ConnectedMapped {
			return s, nil
		}
		return State{Phase: ConnectedNoSurface}, []Effect{{Kind: EffectDiscardHandles, From: 0}}

	case EventPeerClosed, EventPeerLost, EventHandshakeFailed, EventShutdown:
		return State{Phase: Idle}, teardown(s)
	}
	return s, nil
}

func teardown(s State) []Effect {
	var effects []Effect
	if s.Phase != Idle {
		effects = append(effects, Effect{Kind: EffectClosePeer})
	}
	if s.Phase == ConnectedMapped {
		effects = append(effects, releaseSurface()...)
	}
	return effects
}

func releaseSurface() []Effect {
	return []Effect{
		{Kind: EffectReleaseSurface},
		{Kind: EffectCloseSurfaceHandle},
	}
}

func discard(handles, from int) []Effect {
	if handles <= from {
		return nil
	}
	return []Effect{{Kind: EffectDiscardHandles, From: from}}
}
