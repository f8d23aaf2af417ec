package node

import (
	"fmt"

	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/relocation"
	"github.com/sectornet/routing/src/xorname"
)

// EventType enumerates the notifications the core surfaces to the host
// process.
type EventType uint8

const (
	// MemberJoined ...
	MemberJoined EventType = iota
	// MemberLeft ...
	MemberLeft
	// EldersChanged ...
	EldersChanged
	// SectionSplit ...
	SectionSplit
	// SectionsMerged ...
	SectionsMerged
	// RelocationStarted ...
	RelocationStarted
	// RelocationCompleted ...
	RelocationCompleted
)

var eventTypes = []string{
	"MemberJoined",
	"MemberLeft",
	"EldersChanged",
	"SectionSplit",
	"SectionsMerged",
	"RelocationStarted",
	"RelocationCompleted",
}

// String ...
func (t EventType) String() string {
	if int(t) >= len(eventTypes) {
		return "Unknown"
	}
	return eventTypes[t]
}

// Event is one accepted membership change, handed to the host for it to
// surface upward. Fields are set according to Type; unused fields are zero.
type Event struct {
	Type       EventType
	Member     *identity.NodeIdentity
	Prefix     xorname.Prefix
	Relocation *relocation.Details
}

// String ...
func (e Event) String() string {
	switch e.Type {
	case MemberJoined, MemberLeft:
		return fmt.Sprintf("%s(%s)", e.Type, e.Member.Name)
	case SectionSplit, SectionsMerged, EldersChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.Prefix)
	case RelocationStarted, RelocationCompleted:
		return fmt.Sprintf("%s(%s->%s)", e.Type, e.Relocation.Relocating.Name, e.Relocation.DestinationPrefix)
	default:
		return e.Type.String()
	}
}
