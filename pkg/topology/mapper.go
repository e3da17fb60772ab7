package topology

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/rs/zerolog"

	"github.com/azsync/azsync/pkg/source"
)

// Inventory is everything discovered in one account.
type Inventory struct {
	Account         source.Account
	VirtualNetworks []source.VirtualNetwork
	Instances       []source.ComputeInstance
}

// Mapper translates discovered resources into the intermediate graph. A
// mapper is cheap and single-use; build one per run.
type Mapper struct {
	logger zerolog.Logger
}

// NewMapper creates a mapper that logs mapping anomalies through the given
// logger.
func NewMapper(logger zerolog.Logger) *Mapper {
	return &Mapper{logger: logger.With().Str("component", "mapper").Logger()}
}

// Build produces the graph for one or more account inventories. Malformed
// resources are skipped and recorded; Build itself never fails.
func (m *Mapper) Build(inventories []Inventory) *Graph {
	g := &Graph{}

	// Address-space blocks first, then subnets under them, so parents always
	// precede children in g.Blocks.
	spacesByVNet := make(map[string][]*NetworkBlock)
	for _, inv := range inventories {
		for _, vnet := range inv.VirtualNetworks {
			m.mapAddressSpaces(g, inv.Account, vnet, spacesByVNet)
		}
	}
	for _, inv := range inventories {
		for _, vnet := range inv.VirtualNetworks {
			m.mapSubnets(g, vnet, spacesByVNet[vnet.ID])
		}
	}

	for _, inv := range inventories {
		for _, inst := range inv.Instances {
			m.mapInstance(g, inst)
		}
	}

	m.logger.Info().
		Int("blocks", len(g.Blocks)).
		Int("nodes", len(g.Nodes)).
		Int("skips", len(g.Skips)).
		Msg("graph built")
	return g
}

func (m *Mapper) mapAddressSpaces(g *Graph, account source.Account, vnet source.VirtualNetwork, spacesByVNet map[string][]*NetworkBlock) {
	for _, space := range vnet.AddressSpaces {
		prefix, err := netip.ParsePrefix(space)
		if err != nil {
			m.skip(g, vnet.ID, fmt.Sprintf("invalid address space %q: %v", space, err))
			continue
		}
		prefix = prefix.Masked()
		block := &NetworkBlock{
			SourceID:    vnet.ID + "/addressSpace/" + prefix.String(),
			Name:        vnet.Name,
			CIDR:        prefix.String(),
			Prefix:      prefix,
			Description: fmt.Sprintf("Azure VNet: %s (Subscription: %s)", vnet.Name, account.ID),
		}
		g.Blocks = append(g.Blocks, block)
		spacesByVNet[vnet.ID] = append(spacesByVNet[vnet.ID], block)
	}
}

func (m *Mapper) mapSubnets(g *Graph, vnet source.VirtualNetwork, spaces []*NetworkBlock) {
	for _, subnet := range vnet.Subnets {
		if subnet.CIDR == "" {
			m.skip(g, subnet.ID, "subnet has no address prefix")
			continue
		}
		prefix, err := netip.ParsePrefix(subnet.CIDR)
		if err != nil {
			m.skip(g, subnet.ID, fmt.Sprintf("invalid subnet prefix %q: %v", subnet.CIDR, err))
			continue
		}
		prefix = prefix.Masked()

		// Parent resolution follows source-side containment: the subnet
		// belongs to the declared network's address space that covers its
		// range. CIDR arithmetic across networks is never used here, so
		// overlapping ranges in unrelated networks cannot steal children.
		parent := containingSpace(spaces, prefix)
		if parent == nil {
			g.Warnings = append(g.Warnings, fmt.Sprintf(
				"subnet %s (%s) matches no address space of its network; treating as top-level",
				subnet.Name, prefix))
			m.logger.Warn().
				Str("subnet", subnet.ID).
				Str("cidr", prefix.String()).
				Msg("no containing address space, promoting subnet to top level")
		}

		g.Blocks = append(g.Blocks, &NetworkBlock{
			SourceID:    subnet.ID,
			Name:        subnet.Name,
			CIDR:        prefix.String(),
			Prefix:      prefix,
			Parent:      parent,
			Description: fmt.Sprintf("Azure Subnet: %s (VNet: %s)", subnet.Name, vnet.Name),
		})
	}
}

func (m *Mapper) mapInstance(g *Graph, inst source.ComputeInstance) {
	if inst.ID == "" {
		m.skip(g, inst.Name, "compute instance has no resource id")
		return
	}
	node := &ComputeNode{
		SourceID: inst.ID,
		Name:     inst.Name,
		Kind:     string(inst.Kind),
		Location: inst.Location,
		OSType:   inst.OSType,
	}

	for _, iface := range inst.Interfaces {
		att := &NetworkAttachment{
			SourceID: iface.ID,
			Name:     iface.Name,
			MAC:      iface.MAC,
			Node:     node,
		}
		for _, assignment := range iface.PrivateIPs {
			addr, err := netip.ParseAddr(assignment.Address)
			if err != nil {
				m.skip(g, iface.ID, fmt.Sprintf("invalid private address %q: %v", assignment.Address, err))
				continue
			}
			binding := &AddressBinding{
				Addr:       addr,
				Attachment: att,
				Block:      longestPrefixMatch(g.Blocks, addr),
			}
			if binding.Block == nil {
				m.logger.Warn().
					Str("address", addr.String()).
					Str("interface", iface.ID).
					Msg("no discovered block contains address, binding left unresolved")
			}
			att.Bindings = append(att.Bindings, binding)
		}
		node.Attachments = append(node.Attachments, att)
	}

	g.Nodes = append(g.Nodes, node)
}

func (m *Mapper) skip(g *Graph, sourceID, reason string) {
	g.Skips = append(g.Skips, Skip{SourceID: sourceID, Reason: reason})
	m.logger.Warn().Str("resource", sourceID).Str("reason", reason).Msg("resource skipped")
}

// containingSpace returns the narrowest address space covering the subnet, or
// nil when none does.
func containingSpace(spaces []*NetworkBlock, subnet netip.Prefix) *NetworkBlock {
	var best *NetworkBlock
	for _, space := range spaces {
		if !prefixContains(space.Prefix, subnet) {
			continue
		}
		if best == nil || space.Prefix.Bits() > best.Prefix.Bits() {
			best = space
		}
	}
	return best
}

// prefixContains reports whether outer fully covers inner.
func prefixContains(outer, inner netip.Prefix) bool {
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Addr())
}

// longestPrefixMatch selects the most specific block containing addr. Ties on
// prefix length break on CIDR string, then source id, so the result is
// deterministic regardless of discovery order.
func longestPrefixMatch(blocks []*NetworkBlock, addr netip.Addr) *NetworkBlock {
	var candidates []*NetworkBlock
	for _, b := range blocks {
		if b.Prefix.Contains(addr) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Prefix.Bits() != candidates[j].Prefix.Bits() {
			return candidates[i].Prefix.Bits() > candidates[j].Prefix.Bits()
		}
		if candidates[i].CIDR != candidates[j].CIDR {
			return candidates[i].CIDR < candidates[j].CIDR
		}
		return candidates[i].SourceID < candidates[j].SourceID
	})
	return candidates[0]
}
