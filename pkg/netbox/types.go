// Package netbox is the target inventory store: a typed client for the
// NetBox REST API covering the collections the sync writes to. The reconciler
// consumes the Store interface, never the concrete client, so tests can
// substitute a fake.
package netbox

import "context"

// Tag is a provenance marker on inventory objects.
type Tag struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// Prefix is an address-block record.
type Prefix struct {
	ID          int64
	Prefix      string
	ParentID    *int64
	Description string
	Status      string
	TagIDs      []int64
}

// PrefixWrite is the field set for creating or updating a prefix.
type PrefixWrite struct {
	Prefix      string
	ParentID    *int64
	Description string
	Status      string
	TagIDs      []int64
}

// Site is a dcim site record. The sync maps cloud regions onto sites.
type Site struct {
	ID   int64
	Name string
	Slug string
}

// DeviceRole is a dcim device role record.
type DeviceRole struct {
	ID   int64
	Name string
	Slug string
}

// DeviceType is a dcim device type record under a manufacturer.
type DeviceType struct {
	ID    int64
	Model string
	Slug  string
}

// Device is a dcim device record.
type Device struct {
	ID     int64
	Name   string
	SiteID int64
	RoleID int64
	TypeID int64
	Status string
	TagIDs []int64
}

// DeviceWrite is the field set for creating or updating a device.
type DeviceWrite struct {
	Name   string
	SiteID int64
	RoleID int64
	TypeID int64
	Status string
	TagIDs []int64
}

// Interface is a dcim interface record, child of a device.
type Interface struct {
	ID       int64
	DeviceID int64
	Name     string
	Type     string
	MAC      string
	TagIDs   []int64
}

// InterfaceWrite is the field set for creating or updating an interface.
type InterfaceWrite struct {
	DeviceID int64
	Name     string
	Type     string
	MAC      string
	TagIDs   []int64
}

// IPAddress is an ipam IP address record, optionally assigned to an
// interface.
type IPAddress struct {
	ID                 int64
	Address            string
	Description        string
	Status             string
	AssignedObjectType string
	AssignedObjectID   *int64
	TagIDs             []int64
}

// IPAddressWrite is the field set for creating or updating an IP address.
type IPAddressWrite struct {
	Address            string
	Description        string
	Status             string
	AssignedObjectType string
	AssignedObjectID   *int64
	TagIDs             []int64
}

// Store is the write surface the reconciler needs. Find methods return
// (nil, nil) when no record matches; the reconciler owns the create-or-update
// decision.
type Store interface {
	// EnsureTag returns the tag with the given slug, creating it if absent.
	EnsureTag(ctx context.Context, name, slug, description string) (*Tag, error)

	// EnsureSite returns the named site, creating it if absent.
	EnsureSite(ctx context.Context, name, slug, description string, tagIDs []int64) (*Site, error)

	// EnsureDeviceRole returns the named role, creating it if absent.
	EnsureDeviceRole(ctx context.Context, name, slug string, vmRole bool, tagIDs []int64) (*DeviceRole, error)

	// EnsureDeviceType returns the device type for the model, creating it
	// (and its manufacturer) if absent.
	EnsureDeviceType(ctx context.Context, model, slug, manufacturer string, tagIDs []int64) (*DeviceType, error)

	FindPrefix(ctx context.Context, cidr string) (*Prefix, error)
	CreatePrefix(ctx context.Context, w PrefixWrite) (*Prefix, error)
	UpdatePrefix(ctx context.Context, id int64, w PrefixWrite) (*Prefix, error)

	FindDevice(ctx context.Context, name string, siteID int64) (*Device, error)
	CreateDevice(ctx context.Context, w DeviceWrite) (*Device, error)
	UpdateDevice(ctx context.Context, id int64, w DeviceWrite) (*Device, error)

	FindInterface(ctx context.Context, deviceID int64, name string) (*Interface, error)
	CreateInterface(ctx context.Context, w InterfaceWrite) (*Interface, error)
	UpdateInterface(ctx context.Context, id int64, w InterfaceWrite) (*Interface, error)

	FindIP(ctx context.Context, address string) (*IPAddress, error)
	CreateIP(ctx context.Context, w IPAddressWrite) (*IPAddress, error)
	UpdateIP(ctx context.Context, id int64, w IPAddressWrite) (*IPAddress, error)
}
