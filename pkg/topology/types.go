// Package topology builds the intermediate graph between cloud discovery and
// inventory reconciliation: address blocks with a parent/child hierarchy,
// compute nodes, their network attachments, and the address bindings on them.
// The graph is built once per run and only read afterwards.
package topology

import "net/netip"

// NetworkBlock is one address range: a virtual network address space or a
// subnet. Blocks are keyed by CIDR plus parent linkage, never by name.
type NetworkBlock struct {
	// SourceID identifies the source resource this block came from. Address
	// spaces of the same virtual network get distinct IDs.
	SourceID string

	// Name is the raw source display name.
	Name string

	// CIDR is the canonical string form of Prefix.
	CIDR string

	// Prefix is the parsed, masked address range.
	Prefix netip.Prefix

	// Parent is the containing block, nil for top-level blocks.
	Parent *NetworkBlock

	// Description is the inventory description for the target record.
	Description string
}

// TopLevel reports whether this block has no parent.
func (b *NetworkBlock) TopLevel() bool { return b.Parent == nil }

// ComputeNode is a virtual machine, or a bare network interface inventoried
// on its own.
type ComputeNode struct {
	SourceID string
	Name     string
	Kind     string
	Location string
	OSType   string

	Attachments []*NetworkAttachment
}

// NetworkAttachment is a network interface bound to a compute node.
type NetworkAttachment struct {
	SourceID string

	// Name is the raw interface name; empty when the source reports none.
	Name string

	MAC  string
	Node *ComputeNode

	// Bindings are the private addresses on this attachment, in source order.
	Bindings []*AddressBinding
}

// AddressBinding is one private address assigned to an attachment.
type AddressBinding struct {
	// Addr is the parsed address.
	Addr netip.Addr

	// Attachment is the owning network attachment.
	Attachment *NetworkAttachment

	// Block is the narrowest network block containing Addr, resolved by
	// longest-prefix match. Nil means no discovered block contains the
	// address; the binding is kept and flagged unresolved.
	Block *NetworkBlock
}

// Resolved reports whether the binding found a containing block.
func (b *AddressBinding) Resolved() bool { return b.Block != nil }

// Skip records a source resource excluded from the graph because its data was
// invalid or incomplete. Skips are reported, never fatal.
type Skip struct {
	SourceID string
	Reason   string
}

// Graph is the full intermediate model for one run.
type Graph struct {
	// Blocks holds every network block, parents before children.
	Blocks []*NetworkBlock

	// Nodes holds every compute node with attachments and bindings wired.
	Nodes []*ComputeNode

	// Skips lists resources excluded during mapping.
	Skips []Skip

	// Warnings are non-fatal mapping anomalies, such as a subnet whose
	// declared parent was not discovered.
	Warnings []string
}

// TopLevelBlocks returns the blocks with no parent, in insertion order.
func (g *Graph) TopLevelBlocks() []*NetworkBlock {
	var out []*NetworkBlock
	for _, b := range g.Blocks {
		if b.TopLevel() {
			out = append(out, b)
		}
	}
	return out
}

// ChildBlocks returns the blocks with a parent, in insertion order.
func (g *Graph) ChildBlocks() []*NetworkBlock {
	var out []*NetworkBlock
	for _, b := range g.Blocks {
		if !b.TopLevel() {
			out = append(out, b)
		}
	}
	return out
}

// Bindings returns every address binding in the graph, in node order.
func (g *Graph) Bindings() []*AddressBinding {
	var out []*AddressBinding
	for _, node := range g.Nodes {
		for _, att := range node.Attachments {
			out = append(out, att.Bindings...)
		}
	}
	return out
}
