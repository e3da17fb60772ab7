package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/azsync/azsync/pkg/netbox"
)

// fakeStore is an in-memory netbox.Store with failure injection, used by the
// reconciler and orchestrator tests.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	tags       map[string]*netbox.Tag
	sites      map[string]*netbox.Site
	roles      map[string]*netbox.DeviceRole
	types      map[string]*netbox.DeviceType
	prefixes   map[string]*netbox.Prefix
	devices    map[string]*netbox.Device
	interfaces map[string]*netbox.Interface
	ips        map[string]*netbox.IPAddress

	// failCreate and failFind are keyed "kind:key"; matching operations
	// return an injected error.
	failCreate map[string]bool
	failFind   map[string]bool

	// creates and updates count writes per kind.
	creates map[string]int
	updates map[string]int

	// createOrder records the keys of created objects in order.
	createOrder []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tags:       make(map[string]*netbox.Tag),
		sites:      make(map[string]*netbox.Site),
		roles:      make(map[string]*netbox.DeviceRole),
		types:      make(map[string]*netbox.DeviceType),
		prefixes:   make(map[string]*netbox.Prefix),
		devices:    make(map[string]*netbox.Device),
		interfaces: make(map[string]*netbox.Interface),
		ips:        make(map[string]*netbox.IPAddress),
		failCreate: make(map[string]bool),
		failFind:   make(map[string]bool),
		creates:    make(map[string]int),
		updates:    make(map[string]int),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) checkCreate(kind, key string) error {
	if f.failCreate[kind+":"+key] {
		return fmt.Errorf("injected create failure for %s %s", kind, key)
	}
	return nil
}

func (f *fakeStore) checkFind(kind, key string) error {
	if f.failFind[kind+":"+key] {
		return fmt.Errorf("injected find failure for %s %s", kind, key)
	}
	return nil
}

func (f *fakeStore) recordCreate(kind, key string) {
	f.creates[kind]++
	f.createOrder = append(f.createOrder, kind+":"+key)
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.creates {
		n += c
	}
	for _, u := range f.updates {
		n += u
	}
	return n
}

func (f *fakeStore) EnsureTag(ctx context.Context, name, slug, description string) (*netbox.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFind("tag", slug); err != nil {
		return nil, err
	}
	if tag, ok := f.tags[slug]; ok {
		return tag, nil
	}
	tag := &netbox.Tag{ID: f.id(), Name: name, Slug: slug, Description: description}
	f.tags[slug] = tag
	return tag, nil
}

func (f *fakeStore) EnsureSite(ctx context.Context, name, slug, description string, tagIDs []int64) (*netbox.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCreate("site", name); err != nil {
		return nil, err
	}
	if site, ok := f.sites[name]; ok {
		return site, nil
	}
	site := &netbox.Site{ID: f.id(), Name: name, Slug: slug}
	f.sites[name] = site
	return site, nil
}

func (f *fakeStore) EnsureDeviceRole(ctx context.Context, name, slug string, vmRole bool, tagIDs []int64) (*netbox.DeviceRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if role, ok := f.roles[name]; ok {
		return role, nil
	}
	role := &netbox.DeviceRole{ID: f.id(), Name: name, Slug: slug}
	f.roles[name] = role
	return role, nil
}

func (f *fakeStore) EnsureDeviceType(ctx context.Context, model, slug, manufacturer string, tagIDs []int64) (*netbox.DeviceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dt, ok := f.types[model]; ok {
		return dt, nil
	}
	dt := &netbox.DeviceType{ID: f.id(), Model: model, Slug: slug}
	f.types[model] = dt
	return dt, nil
}

func (f *fakeStore) FindPrefix(ctx context.Context, cidr string) (*netbox.Prefix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFind("prefix", cidr); err != nil {
		return nil, err
	}
	if p, ok := f.prefixes[cidr]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreatePrefix(ctx context.Context, w netbox.PrefixWrite) (*netbox.Prefix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCreate("prefix", w.Prefix); err != nil {
		return nil, err
	}
	p := &netbox.Prefix{
		ID:          f.id(),
		Prefix:      w.Prefix,
		ParentID:    w.ParentID,
		Description: w.Description,
		Status:      w.Status,
		TagIDs:      w.TagIDs,
	}
	f.prefixes[w.Prefix] = p
	f.recordCreate("prefix", w.Prefix)
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdatePrefix(ctx context.Context, id int64, w netbox.PrefixWrite) (*netbox.Prefix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prefixes[w.Prefix]
	if p == nil || p.ID != id {
		return nil, fmt.Errorf("prefix %d not found", id)
	}
	p.ParentID = w.ParentID
	p.Description = w.Description
	p.Status = w.Status
	p.TagIDs = w.TagIDs
	f.updates["prefix"]++
	cp := *p
	return &cp, nil
}

func deviceKey(name string, siteID int64) string {
	return fmt.Sprintf("%s@%d", name, siteID)
}

func (f *fakeStore) FindDevice(ctx context.Context, name string, siteID int64) (*netbox.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFind("device", name); err != nil {
		return nil, err
	}
	if d, ok := f.devices[deviceKey(name, siteID)]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateDevice(ctx context.Context, w netbox.DeviceWrite) (*netbox.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCreate("device", w.Name); err != nil {
		return nil, err
	}
	d := &netbox.Device{
		ID:     f.id(),
		Name:   w.Name,
		SiteID: w.SiteID,
		RoleID: w.RoleID,
		TypeID: w.TypeID,
		Status: w.Status,
		TagIDs: w.TagIDs,
	}
	f.devices[deviceKey(w.Name, w.SiteID)] = d
	f.recordCreate("device", w.Name)
	cp := *d
	return &cp, nil
}

func (f *fakeStore) UpdateDevice(ctx context.Context, id int64, w netbox.DeviceWrite) (*netbox.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.devices[deviceKey(w.Name, w.SiteID)]
	if d == nil || d.ID != id {
		return nil, fmt.Errorf("device %d not found", id)
	}
	d.RoleID = w.RoleID
	d.TypeID = w.TypeID
	d.Status = w.Status
	d.TagIDs = w.TagIDs
	f.updates["device"]++
	cp := *d
	return &cp, nil
}

func ifaceKey(deviceID int64, name string) string {
	return fmt.Sprintf("%d/%s", deviceID, name)
}

func (f *fakeStore) FindInterface(ctx context.Context, deviceID int64, name string) (*netbox.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFind("interface", name); err != nil {
		return nil, err
	}
	if i, ok := f.interfaces[ifaceKey(deviceID, name)]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateInterface(ctx context.Context, w netbox.InterfaceWrite) (*netbox.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCreate("interface", w.Name); err != nil {
		return nil, err
	}
	i := &netbox.Interface{
		ID:       f.id(),
		DeviceID: w.DeviceID,
		Name:     w.Name,
		Type:     w.Type,
		MAC:      w.MAC,
		TagIDs:   w.TagIDs,
	}
	f.interfaces[ifaceKey(w.DeviceID, w.Name)] = i
	f.recordCreate("interface", w.Name)
	cp := *i
	return &cp, nil
}

func (f *fakeStore) UpdateInterface(ctx context.Context, id int64, w netbox.InterfaceWrite) (*netbox.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.interfaces[ifaceKey(w.DeviceID, w.Name)]
	if i == nil || i.ID != id {
		return nil, fmt.Errorf("interface %d not found", id)
	}
	i.MAC = w.MAC
	i.TagIDs = w.TagIDs
	f.updates["interface"]++
	cp := *i
	return &cp, nil
}

func (f *fakeStore) FindIP(ctx context.Context, address string) (*netbox.IPAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFind("ip", address); err != nil {
		return nil, err
	}
	if ip, ok := f.ips[address]; ok {
		cp := *ip
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateIP(ctx context.Context, w netbox.IPAddressWrite) (*netbox.IPAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCreate("ip", w.Address); err != nil {
		return nil, err
	}
	ip := &netbox.IPAddress{
		ID:                 f.id(),
		Address:            w.Address,
		Description:        w.Description,
		Status:             w.Status,
		AssignedObjectType: w.AssignedObjectType,
		AssignedObjectID:   w.AssignedObjectID,
		TagIDs:             w.TagIDs,
	}
	f.ips[w.Address] = ip
	f.recordCreate("ip", w.Address)
	cp := *ip
	return &cp, nil
}

func (f *fakeStore) UpdateIP(ctx context.Context, id int64, w netbox.IPAddressWrite) (*netbox.IPAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ip := f.ips[w.Address]
	if ip == nil || ip.ID != id {
		return nil, fmt.Errorf("ip %d not found", id)
	}
	ip.Description = w.Description
	ip.Status = w.Status
	ip.AssignedObjectType = w.AssignedObjectType
	ip.AssignedObjectID = w.AssignedObjectID
	ip.TagIDs = w.TagIDs
	f.updates["ip"]++
	cp := *ip
	return &cp, nil
}

var _ netbox.Store = (*fakeStore)(nil)
