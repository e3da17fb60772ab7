// Package source defines the inventory provider contract: the read-only view
// of a cloud account's network topology that the sync consumes. Implementations
// live in subpackages; the rest of the system depends only on the interface and
// the record types here.
package source

import "context"

// AuthMode selects how the provider authenticates against the cloud.
type AuthMode string

const (
	// AuthModeDefault uses the provider's default credential chain
	// (environment, managed identity, CLI session).
	AuthModeDefault AuthMode = "default"

	// AuthModeInteractive opens a browser login.
	AuthModeInteractive AuthMode = "interactive"
)

// Account is a top-level billing/isolation scope, an Azure subscription.
type Account struct {
	// ID is the account identifier used to scope list calls.
	ID string

	// Name is the display name, informational only.
	Name string
}

// VirtualNetwork is one discovered virtual network with its address spaces and
// subnets.
type VirtualNetwork struct {
	// ID is the full source resource identifier.
	ID string

	// Name is the raw display name, not normalized.
	Name string

	// Location is the cloud region the network lives in.
	Location string

	// AddressSpaces are the CIDR ranges assigned to the network. A network
	// can carry more than one.
	AddressSpaces []string

	// Subnets are the subnets declared under this network.
	Subnets []Subnet
}

// Subnet is an address range carved out of a virtual network.
type Subnet struct {
	ID   string
	Name string

	// CIDR is the subnet's address prefix as reported by the source. It may
	// be empty or malformed; the mapper validates it.
	CIDR string
}

// InstanceKind distinguishes full virtual machines from bare network
// interfaces with no attached machine. Both are inventoried.
type InstanceKind string

const (
	InstanceKindVM  InstanceKind = "vm"
	InstanceKindNIC InstanceKind = "network_interface"
)

// ComputeInstance is a virtual machine (or an unattached NIC) with its
// network interfaces.
type ComputeInstance struct {
	ID       string
	Name     string
	Location string
	Kind     InstanceKind

	// OSType is the operating system family when known ("Linux", "Windows").
	OSType string

	Interfaces []Interface
}

// Interface is a network interface bound to a compute instance.
type Interface struct {
	ID string

	// Name is the source-side interface name. Empty when the source has no
	// guest-visible name for it.
	Name string

	// MAC is the hardware address when reported.
	MAC string

	// PrivateIPs are the private addresses assigned to this interface, in
	// the order the source reports them.
	PrivateIPs []IPAssignment
}

// IPAssignment is one private address with the subnet the source declared it
// under. The subnet reference is a hint; containment is re-resolved by
// longest-prefix match when the graph is built.
type IPAssignment struct {
	Address  string
	SubnetID string
}

// Provider enumerates cloud resources for the sync. Implementations must be
// safe for sequential use within one run; list calls are never issued
// concurrently for the same account.
type Provider interface {
	// ListAccounts returns every account the credential can see.
	ListAccounts(ctx context.Context) ([]Account, error)

	// ListVirtualNetworks returns all virtual networks in one account.
	ListVirtualNetworks(ctx context.Context, accountID string) ([]VirtualNetwork, error)

	// ListComputeInstances returns all compute instances in one account,
	// with unattached NICs included as InstanceKindNIC entries.
	ListComputeInstances(ctx context.Context, accountID string) ([]ComputeInstance, error)
}
