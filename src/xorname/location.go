package xorname

import "fmt"

// LocationType discriminates the two kinds of message endpoints.
type LocationType uint8

const (
	// NodeLocation addresses a single node by Name.
	NodeLocation LocationType = iota
	// SectionLocation addresses the whole section responsible for a Prefix.
	SectionLocation
)

// SrcLocation describes the origin of a message: either an individual node or
// a section speaking with one voice.
type SrcLocation struct {
	Type   LocationType
	Node   Name
	Prefix Prefix
}

// DstLocation describes the destination of a message.
type DstLocation struct {
	Type   LocationType
	Node   Name
	Prefix Prefix
}

// NewNodeSrc ...
func NewNodeSrc(name Name) SrcLocation {
	return SrcLocation{Type: NodeLocation, Node: name}
}

// NewSectionSrc ...
func NewSectionSrc(prefix Prefix) SrcLocation {
	return SrcLocation{Type: SectionLocation, Prefix: prefix}
}

// NewNodeDst ...
func NewNodeDst(name Name) DstLocation {
	return DstLocation{Type: NodeLocation, Node: name}
}

// NewSectionDst ...
func NewSectionDst(prefix Prefix) DstLocation {
	return DstLocation{Type: SectionLocation, Prefix: prefix}
}

// TargetName returns the Name that routing should steer towards: the node's
// Name itself, or the base Name of the destination section's Prefix.
func (d DstLocation) TargetName() Name {
	if d.Type == NodeLocation {
		return d.Node
	}
	return d.Prefix.Base
}

// Contains reports whether a node with the given name is a final recipient of
// a message to this destination.
func (d DstLocation) Contains(name Name) bool {
	if d.Type == NodeLocation {
		return d.Node == name
	}
	return d.Prefix.Matches(name)
}

// String ...
func (d DstLocation) String() string {
	if d.Type == NodeLocation {
		return fmt.Sprintf("node(%s)", d.Node)
	}
	return fmt.Sprintf("section(%s)", d.Prefix)
}

// String ...
func (s SrcLocation) String() string {
	if s.Type == NodeLocation {
		return fmt.Sprintf("node(%s)", s.Node)
	}
	return fmt.Sprintf("section(%s)", s.Prefix)
}
