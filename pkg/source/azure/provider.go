// Package azure implements the source inventory provider against the Azure
// Resource Manager APIs, mirroring the azure-sdk credential chain and the
// list-all enumeration the sync was built around.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	armnetwork "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/subscription/armsubscription"
	"github.com/rs/zerolog"

	"github.com/azsync/azsync/pkg/source"
)

// Provider enumerates Azure subscriptions, virtual networks, NICs, and VMs.
type Provider struct {
	cred   azcore.TokenCredential
	logger zerolog.Logger
}

// NewProvider builds a provider with the requested authentication mode. A
// credential that cannot be constructed is a fatal condition for the caller;
// nothing can proceed without one.
func NewProvider(mode source.AuthMode, logger zerolog.Logger) (*Provider, error) {
	var (
		cred azcore.TokenCredential
		err  error
	)

	switch mode {
	case source.AuthModeInteractive:
		logger.Info().Msg("using interactive browser authentication")
		cred, err = azidentity.NewInteractiveBrowserCredential(nil)
	default:
		logger.Info().Msg("using default credential chain")
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring azure credential: %w", err)
	}

	return &Provider{cred: cred, logger: logger.With().Str("component", "azure").Logger()}, nil
}

// ListAccounts returns every subscription visible to the credential.
func (p *Provider) ListAccounts(ctx context.Context) ([]source.Account, error) {
	client, err := armsubscription.NewSubscriptionsClient(p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating subscriptions client: %w", err)
	}

	var accounts []source.Account
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing subscriptions: %w", classify(err))
		}
		for _, sub := range page.Value {
			if sub.SubscriptionID == nil {
				continue
			}
			accounts = append(accounts, source.Account{
				ID:   deref(sub.SubscriptionID),
				Name: deref(sub.DisplayName),
			})
		}
	}

	p.logger.Info().Int("count", len(accounts)).Msg("subscriptions discovered")
	return accounts, nil
}

// ListVirtualNetworks returns all virtual networks in one subscription with
// their address spaces and subnets.
func (p *Provider) ListVirtualNetworks(ctx context.Context, accountID string) ([]source.VirtualNetwork, error) {
	client, err := armnetwork.NewVirtualNetworksClient(accountID, p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating virtual networks client: %w", err)
	}

	var vnets []source.VirtualNetwork
	pager := client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing virtual networks in %s: %w", accountID, classify(err))
		}
		for _, vn := range page.Value {
			vnets = append(vnets, convertVirtualNetwork(vn))
		}
	}

	p.logger.Info().
		Str("subscription", accountID).
		Int("count", len(vnets)).
		Msg("virtual networks discovered")
	return vnets, nil
}

// ListComputeInstances returns all VMs in one subscription with their NICs
// attached, plus every NIC that has no VM as a standalone instance. The result
// preserves API enumeration order: VMs first, then standalone NICs, so the
// same input always produces the same instance order.
func (p *Provider) ListComputeInstances(ctx context.Context, accountID string) ([]source.ComputeInstance, error) {
	vms, err := p.listVirtualMachines(ctx, accountID)
	if err != nil {
		return nil, err
	}

	nicClient, err := armnetwork.NewInterfacesClient(accountID, p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating interfaces client: %w", err)
	}

	var nics []nicRecord
	pager := nicClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing network interfaces in %s: %w", accountID, classify(err))
		}
		for _, nic := range page.Value {
			iface, vmID := convertInterface(nic)
			nics = append(nics, nicRecord{
				iface:    iface,
				vmID:     vmID,
				name:     deref(nic.Name),
				location: deref(nic.Location),
			})
		}
	}

	p.logger.Info().
		Str("subscription", accountID).
		Int("vms", len(vms)).
		Int("nics", len(nics)).
		Msg("compute instances discovered")

	return assembleInstances(vms, nics), nil
}

// nicRecord is one discovered NIC before attachment resolution.
type nicRecord struct {
	iface    source.Interface
	vmID     string
	name     string
	location string
}

// assembleInstances attaches NICs to their VMs and appends unattached NICs as
// standalone instances, keeping discovery order throughout.
func assembleInstances(vms []*source.ComputeInstance, nics []nicRecord) []source.ComputeInstance {
	byID := make(map[string]*source.ComputeInstance, len(vms))
	for _, vm := range vms {
		byID[strings.ToLower(vm.ID)] = vm
	}

	var standalone []*source.ComputeInstance
	for _, nic := range nics {
		if nic.vmID != "" {
			if vm, ok := byID[strings.ToLower(nic.vmID)]; ok {
				vm.Interfaces = append(vm.Interfaces, nic.iface)
				continue
			}
		}
		// NIC with no resolvable VM: inventory it on its own.
		standalone = append(standalone, &source.ComputeInstance{
			ID:         nic.iface.ID,
			Name:       nic.name,
			Location:   nic.location,
			Kind:       source.InstanceKindNIC,
			Interfaces: []source.Interface{nic.iface},
		})
	}

	out := make([]source.ComputeInstance, 0, len(vms)+len(standalone))
	for _, vm := range vms {
		out = append(out, *vm)
	}
	for _, nic := range standalone {
		out = append(out, *nic)
	}
	return out
}

func (p *Provider) listVirtualMachines(ctx context.Context, accountID string) ([]*source.ComputeInstance, error) {
	client, err := armcompute.NewVirtualMachinesClient(accountID, p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating virtual machines client: %w", err)
	}

	var vms []*source.ComputeInstance
	pager := client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing virtual machines in %s: %w", accountID, classify(err))
		}
		for _, vm := range page.Value {
			if vm.ID == nil {
				continue
			}
			vms = append(vms, &source.ComputeInstance{
				ID:       deref(vm.ID),
				Name:     deref(vm.Name),
				Location: deref(vm.Location),
				Kind:     source.InstanceKindVM,
				OSType:   osType(vm),
			})
		}
	}
	return vms, nil
}

func convertVirtualNetwork(vn *armnetwork.VirtualNetwork) source.VirtualNetwork {
	out := source.VirtualNetwork{
		ID:       deref(vn.ID),
		Name:     deref(vn.Name),
		Location: deref(vn.Location),
	}
	if vn.Properties == nil {
		return out
	}
	if vn.Properties.AddressSpace != nil {
		for _, prefix := range vn.Properties.AddressSpace.AddressPrefixes {
			out.AddressSpaces = append(out.AddressSpaces, deref(prefix))
		}
	}
	for _, sn := range vn.Properties.Subnets {
		subnet := source.Subnet{
			ID:   deref(sn.ID),
			Name: deref(sn.Name),
		}
		if sn.Properties != nil {
			subnet.CIDR = deref(sn.Properties.AddressPrefix)
		}
		out.Subnets = append(out.Subnets, subnet)
	}
	return out
}

// convertInterface maps one NIC and returns the ID of the VM it is attached
// to, empty when unattached.
func convertInterface(nic *armnetwork.Interface) (source.Interface, string) {
	iface := source.Interface{
		ID:   deref(nic.ID),
		Name: deref(nic.Name),
	}
	vmID := ""
	if nic.Properties == nil {
		return iface, vmID
	}
	iface.MAC = deref(nic.Properties.MacAddress)
	if nic.Properties.VirtualMachine != nil {
		vmID = deref(nic.Properties.VirtualMachine.ID)
	}
	for _, ipc := range nic.Properties.IPConfigurations {
		if ipc.Properties == nil || ipc.Properties.PrivateIPAddress == nil {
			continue
		}
		assignment := source.IPAssignment{
			Address: deref(ipc.Properties.PrivateIPAddress),
		}
		if ipc.Properties.Subnet != nil {
			assignment.SubnetID = deref(ipc.Properties.Subnet.ID)
		}
		iface.PrivateIPs = append(iface.PrivateIPs, assignment)
	}
	return iface, vmID
}

func osType(vm *armcompute.VirtualMachine) string {
	if vm.Properties == nil ||
		vm.Properties.StorageProfile == nil ||
		vm.Properties.StorageProfile.OSDisk == nil ||
		vm.Properties.StorageProfile.OSDisk.OSType == nil {
		return ""
	}
	return string(*vm.Properties.StorageProfile.OSDisk.OSType)
}

// classify wraps credential failures in source.AuthError so they surface as
// fatal instead of being treated as one account's listing problem. Token
// acquisition failures and 401/403 responses both count.
func classify(err error) error {
	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) {
		return &source.AuthError{Err: err}
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) &&
		(respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden) {
		return &source.AuthError{Err: err}
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
