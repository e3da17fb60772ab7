package sync

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/rs/zerolog"

	"github.com/azsync/azsync/pkg/naming"
	"github.com/azsync/azsync/pkg/netbox"
	"github.com/azsync/azsync/pkg/telemetry"
	"github.com/azsync/azsync/pkg/topology"
)

// Target-side constants carried over from the records this sync manages.
const (
	statusActive     = "active"
	interfaceType    = "1000base-t"
	defaultIfaceName = "eth0"
	manufacturerName = "Microsoft Azure"
	sitePrefix       = "Azure-"
)

// Reconciler makes the target store match the intermediate graph. Objects are
// processed in dependency order: top-level blocks, child blocks, devices,
// interfaces, addresses. Within each phase, independent objects run on a
// bounded worker pool; a barrier between phases guarantees every parent
// identifier is visible before any child is dispatched.
type Reconciler struct {
	store       netbox.Store
	tags        *TagManager
	names       *naming.Normalizer
	maxParallel int
	logger      zerolog.Logger
	metrics     *telemetry.Metrics

	// mu guards everything below. Written by phase workers; read by later
	// phases after the barrier.
	mu        sync.Mutex
	prefixIDs map[*topology.NetworkBlock]int64
	deviceIDs map[*topology.ComputeNode]int64
	ifaceIDs  map[*topology.NetworkAttachment]int64
	failed    map[any]bool

	// Scaffolding resolved up front: sites by location, roles and device
	// types by node kind.
	siteIDs   map[string]int64
	siteNames map[string]string
	roleIDs   map[string]int64
	typeIDs   map[string]int64

	// Names are assigned sequentially before any parallel phase; the
	// normalizer is not safe for concurrent use.
	deviceNames map[*topology.ComputeNode]string
	ifaceNames  map[*topology.NetworkAttachment]string
}

// NewReconciler builds a reconciler. maxParallel bounds concurrent target
// writes within one phase.
func NewReconciler(
	store netbox.Store,
	tags *TagManager,
	names *naming.Normalizer,
	maxParallel int,
	logger zerolog.Logger,
	metrics *telemetry.Metrics,
) *Reconciler {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Reconciler{
		store:       store,
		tags:        tags,
		names:       names,
		maxParallel: maxParallel,
		logger:      logger.With().Str("component", "reconciler").Logger(),
		metrics:     metrics,
		prefixIDs:   make(map[*topology.NetworkBlock]int64),
		deviceIDs:   make(map[*topology.ComputeNode]int64),
		ifaceIDs:    make(map[*topology.NetworkAttachment]int64),
		failed:      make(map[any]bool),
		siteIDs:     make(map[string]int64),
		siteNames:   make(map[string]string),
		roleIDs:     make(map[string]int64),
		typeIDs:     make(map[string]int64),
		deviceNames: make(map[*topology.ComputeNode]string),
		ifaceNames:  make(map[*topology.NetworkAttachment]string),
	}
}

// Reconcile walks the graph and records every outcome in the report. It
// returns only on completion or context cancellation; per-object failures
// never abort it.
func (r *Reconciler) Reconcile(ctx context.Context, g *topology.Graph, report *Report) {
	r.assignNames(g)
	r.ensureScaffolding(ctx, g, report)

	r.runPhase(ctx, "prefixes/top-level", blockItems(r, g.TopLevelBlocks(), report))
	r.runPhase(ctx, "prefixes/children", blockItems(r, g.ChildBlocks(), report))
	r.runPhase(ctx, "devices", nodeItems(r, g.Nodes, report))
	r.runPhase(ctx, "interfaces", attachmentItems(r, g, report))
	r.runPhase(ctx, "addresses", bindingItems(r, g, report))

	if ctx.Err() != nil {
		report.MarkIncomplete()
	}
}

// assignNames precomputes every device and interface name in graph order so
// results do not depend on worker scheduling.
func (r *Reconciler) assignNames(g *topology.Graph) {
	for _, node := range g.Nodes {
		site := sitePrefix + node.Location
		r.deviceNames[node] = r.names.Normalize(naming.KindDevice, site, node.Name, node.SourceID)
		for _, att := range node.Attachments {
			raw := att.Name
			if raw == "" {
				raw = defaultIfaceName
			}
			r.ifaceNames[att] = r.names.Normalize(naming.KindInterface, node.SourceID, raw, att.SourceID)
		}
	}
}

// ensureScaffolding creates the sites, device roles, and device types the
// graph needs. Runs sequentially before the parallel phases; a scaffolding
// failure cascades to every device that needed it.
func (r *Reconciler) ensureScaffolding(ctx context.Context, g *topology.Graph, report *Report) {
	locations := make(map[string]bool)
	kinds := make(map[string]bool)
	for _, node := range g.Nodes {
		locations[node.Location] = true
		kinds[node.Kind] = true
	}

	tagSet := r.tags.Apply(nil)

	for location := range locations {
		name := sitePrefix + location
		site, err := r.store.EnsureSite(ctx, name, slugify(name),
			fmt.Sprintf("Azure Region: %s", location), tagSet)
		if err != nil {
			report.AddWarning(fmt.Sprintf("site %s unavailable: %v", name, err))
			r.logger.Error().Err(err).Str("site", name).Msg("ensuring site failed")
			continue
		}
		r.siteIDs[location] = site.ID
		r.siteNames[location] = site.Name
	}

	for kind := range kinds {
		label := kindLabel(kind)
		role, err := r.store.EnsureDeviceRole(ctx, label, slugify(label), kind == "vm", tagSet)
		if err != nil {
			report.AddWarning(fmt.Sprintf("device role %s unavailable: %v", label, err))
			continue
		}
		r.roleIDs[kind] = role.ID

		deviceType, err := r.store.EnsureDeviceType(ctx, label, slugify(label), manufacturerName, tagSet)
		if err != nil {
			report.AddWarning(fmt.Sprintf("device type %s unavailable: %v", label, err))
			continue
		}
		r.typeIDs[kind] = deviceType.ID
	}
}

// workItem is one object to reconcile within a phase.
type workItem struct {
	key string
	run func(context.Context)
}

// runPhase executes all items on a bounded worker pool and waits for the
// phase barrier. Identifiers written by this phase are visible to the next.
func (r *Reconciler) runPhase(ctx context.Context, name string, items []workItem) {
	if len(items) == 0 {
		return
	}

	workers := r.maxParallel
	if len(items) < workers {
		workers = len(items)
	}

	queue := make(chan workItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				item.run(ctx)
			}
		}()
	}
	wg.Wait()

	r.logger.Debug().Str("phase", name).Int("objects", len(items)).Msg("phase complete")
}

func blockItems(r *Reconciler, blocks []*topology.NetworkBlock, report *Report) []workItem {
	items := make([]workItem, 0, len(blocks))
	for _, block := range blocks {
		block := block
		items = append(items, workItem{
			key: block.CIDR,
			run: func(ctx context.Context) { r.reconcileBlock(ctx, block, report) },
		})
	}
	return items
}

func nodeItems(r *Reconciler, nodes []*topology.ComputeNode, report *Report) []workItem {
	items := make([]workItem, 0, len(nodes))
	for _, node := range nodes {
		node := node
		items = append(items, workItem{
			key: node.SourceID,
			run: func(ctx context.Context) { r.reconcileNode(ctx, node, report) },
		})
	}
	return items
}

func attachmentItems(r *Reconciler, g *topology.Graph, report *Report) []workItem {
	var items []workItem
	for _, node := range g.Nodes {
		for _, att := range node.Attachments {
			att := att
			items = append(items, workItem{
				key: att.SourceID,
				run: func(ctx context.Context) { r.reconcileAttachment(ctx, att, report) },
			})
		}
	}
	return items
}

func bindingItems(r *Reconciler, g *topology.Graph, report *Report) []workItem {
	var items []workItem
	for _, binding := range g.Bindings() {
		binding := binding
		items = append(items, workItem{
			key: binding.Addr.String(),
			run: func(ctx context.Context) { r.reconcileBinding(ctx, binding, report) },
		})
	}
	return items
}

func (r *Reconciler) reconcileBlock(ctx context.Context, block *topology.NetworkBlock, report *Report) {
	if r.budgetExpired(ctx, report, KindPrefix, block.CIDR, block) {
		return
	}
	if block.Parent != nil && r.isFailed(block.Parent) {
		r.cascadeSkip(report, KindPrefix, block.CIDR, block.Parent.CIDR, block)
		return
	}

	var parentID *int64
	if block.Parent != nil {
		if id, ok := r.lookupPrefixID(block.Parent); ok {
			parentID = &id
		}
	}

	existing, err := r.store.FindPrefix(ctx, block.CIDR)
	if err != nil {
		r.fail(report, KindPrefix, block.CIDR, err, block)
		return
	}

	desired := netbox.PrefixWrite{
		Prefix:      block.CIDR,
		ParentID:    parentID,
		Description: block.Description,
		Status:      statusActive,
	}

	if existing == nil {
		desired.TagIDs = r.tags.Apply(nil)
		created, err := r.store.CreatePrefix(ctx, desired)
		if err != nil {
			r.fail(report, KindPrefix, block.CIDR, err, block)
			return
		}
		r.storePrefixID(block, created.ID)
		r.observe(report, KindPrefix, OutcomeCreated)
		r.logger.Info().Str("prefix", block.CIDR).Msg("prefix created")
		return
	}

	r.storePrefixID(block, existing.ID)
	desired.TagIDs = r.tags.Apply(existing.TagIDs)
	if !prefixChanged(existing, desired, r.tags) {
		r.observe(report, KindPrefix, OutcomeUnchanged)
		return
	}
	if _, err := r.store.UpdatePrefix(ctx, existing.ID, desired); err != nil {
		r.fail(report, KindPrefix, block.CIDR, err, block)
		return
	}
	r.observe(report, KindPrefix, OutcomeUpdated)
	r.logger.Info().Str("prefix", block.CIDR).Msg("prefix updated")
}

// prefixChanged ignores the parent reference: the target derives prefix
// hierarchy from containment and does not echo the advisory field back.
func prefixChanged(existing *netbox.Prefix, desired netbox.PrefixWrite, tags *TagManager) bool {
	return existing.Description != desired.Description ||
		existing.Status != desired.Status ||
		!tags.Has(existing.TagIDs)
}

func (r *Reconciler) reconcileNode(ctx context.Context, node *topology.ComputeNode, report *Report) {
	name := r.deviceNames[node]
	if r.budgetExpired(ctx, report, KindDevice, name, node) {
		return
	}

	siteID, siteOK := r.siteIDs[node.Location]
	roleID, roleOK := r.roleIDs[node.Kind]
	typeID, typeOK := r.typeIDs[node.Kind]
	if !siteOK || !roleOK || !typeOK {
		r.cascadeSkip(report, KindDevice, name, sitePrefix+node.Location, node)
		return
	}

	existing, err := r.store.FindDevice(ctx, name, siteID)
	if err != nil {
		r.fail(report, KindDevice, name, err, node)
		return
	}

	desired := netbox.DeviceWrite{
		Name:   name,
		SiteID: siteID,
		RoleID: roleID,
		TypeID: typeID,
		Status: statusActive,
	}

	if existing == nil {
		desired.TagIDs = r.tags.Apply(nil)
		created, err := r.store.CreateDevice(ctx, desired)
		if err != nil {
			r.fail(report, KindDevice, name, err, node)
			return
		}
		r.storeDeviceID(node, created.ID)
		r.observe(report, KindDevice, OutcomeCreated)
		r.logger.Info().Str("device", name).Msg("device created")
		return
	}

	r.storeDeviceID(node, existing.ID)
	desired.TagIDs = r.tags.Apply(existing.TagIDs)
	if !deviceChanged(existing, desired, r.tags) {
		r.observe(report, KindDevice, OutcomeUnchanged)
		return
	}
	if _, err := r.store.UpdateDevice(ctx, existing.ID, desired); err != nil {
		r.fail(report, KindDevice, name, err, node)
		return
	}
	r.observe(report, KindDevice, OutcomeUpdated)
	r.logger.Info().Str("device", name).Msg("device updated")
}

func deviceChanged(existing *netbox.Device, desired netbox.DeviceWrite, tags *TagManager) bool {
	return existing.SiteID != desired.SiteID ||
		existing.RoleID != desired.RoleID ||
		existing.TypeID != desired.TypeID ||
		existing.Status != desired.Status ||
		!tags.Has(existing.TagIDs)
}

func (r *Reconciler) reconcileAttachment(ctx context.Context, att *topology.NetworkAttachment, report *Report) {
	name := r.ifaceNames[att]
	key := r.deviceNames[att.Node] + "/" + name
	if r.budgetExpired(ctx, report, KindInterface, key, att) {
		return
	}
	if r.isFailed(att.Node) {
		r.cascadeSkip(report, KindInterface, key, r.deviceNames[att.Node], att)
		return
	}

	deviceID, ok := r.lookupDeviceID(att.Node)
	if !ok {
		r.cascadeSkip(report, KindInterface, key, r.deviceNames[att.Node], att)
		return
	}

	existing, err := r.store.FindInterface(ctx, deviceID, name)
	if err != nil {
		r.fail(report, KindInterface, key, err, att)
		return
	}

	desired := netbox.InterfaceWrite{
		DeviceID: deviceID,
		Name:     name,
		Type:     interfaceType,
		MAC:      att.MAC,
	}

	if existing == nil {
		desired.TagIDs = r.tags.Apply(nil)
		created, err := r.store.CreateInterface(ctx, desired)
		if err != nil {
			r.fail(report, KindInterface, key, err, att)
			return
		}
		r.storeIfaceID(att, created.ID)
		r.observe(report, KindInterface, OutcomeCreated)
		return
	}

	r.storeIfaceID(att, existing.ID)
	desired.TagIDs = r.tags.Apply(existing.TagIDs)
	if !interfaceChanged(existing, desired, r.tags) {
		r.observe(report, KindInterface, OutcomeUnchanged)
		return
	}
	if _, err := r.store.UpdateInterface(ctx, existing.ID, desired); err != nil {
		r.fail(report, KindInterface, key, err, att)
		return
	}
	r.observe(report, KindInterface, OutcomeUpdated)
}

func interfaceChanged(existing *netbox.Interface, desired netbox.InterfaceWrite, tags *TagManager) bool {
	return existing.MAC != desired.MAC ||
		!tags.Has(existing.TagIDs)
}

func (r *Reconciler) reconcileBinding(ctx context.Context, binding *topology.AddressBinding, report *Report) {
	address := bindingAddress(binding)
	if r.budgetExpired(ctx, report, KindIPAddress, address, binding) {
		return
	}
	if r.isFailed(binding.Attachment) {
		r.cascadeSkip(report, KindIPAddress, address, binding.Attachment.SourceID, binding)
		return
	}
	if binding.Block != nil && r.isFailed(binding.Block) {
		r.cascadeSkip(report, KindIPAddress, address, binding.Block.CIDR, binding)
		return
	}

	ifaceID, ok := r.lookupIfaceID(binding.Attachment)
	if !ok {
		r.cascadeSkip(report, KindIPAddress, address, binding.Attachment.SourceID, binding)
		return
	}

	existing, err := r.store.FindIP(ctx, address)
	if err != nil {
		r.fail(report, KindIPAddress, address, err, binding)
		return
	}

	desired := netbox.IPAddressWrite{
		Address:            address,
		Description:        fmt.Sprintf("IP for %s", r.deviceNames[binding.Attachment.Node]),
		Status:             statusActive,
		AssignedObjectType: "dcim.interface",
		AssignedObjectID:   &ifaceID,
	}

	if existing == nil {
		desired.TagIDs = r.tags.Apply(nil)
		if _, err := r.store.CreateIP(ctx, desired); err != nil {
			r.fail(report, KindIPAddress, address, err, binding)
			return
		}
		r.observe(report, KindIPAddress, OutcomeCreated)
		return
	}

	desired.TagIDs = r.tags.Apply(existing.TagIDs)
	if !ipChanged(existing, desired, r.tags) {
		r.observe(report, KindIPAddress, OutcomeUnchanged)
		return
	}
	if _, err := r.store.UpdateIP(ctx, existing.ID, desired); err != nil {
		r.fail(report, KindIPAddress, address, err, binding)
		return
	}
	r.observe(report, KindIPAddress, OutcomeUpdated)
}

func ipChanged(existing *netbox.IPAddress, desired netbox.IPAddressWrite, tags *TagManager) bool {
	assignmentChanged := existing.AssignedObjectType != desired.AssignedObjectType ||
		existing.AssignedObjectID == nil ||
		desired.AssignedObjectID == nil ||
		*existing.AssignedObjectID != *desired.AssignedObjectID
	return assignmentChanged ||
		existing.Description != desired.Description ||
		existing.Status != desired.Status ||
		!tags.Has(existing.TagIDs)
}

// bindingAddress renders the address with the mask of its containing block,
// host mask when unresolved.
func bindingAddress(binding *topology.AddressBinding) string {
	bits := binding.Addr.BitLen()
	if binding.Block != nil {
		bits = binding.Block.Prefix.Bits()
	}
	return netip.PrefixFrom(binding.Addr, bits).String()
}

// --- shared bookkeeping ---

func (r *Reconciler) observe(report *Report, kind ObjectKind, outcome Outcome) {
	report.Observe(kind, outcome)
	r.metrics.ObserveObject(string(kind), string(outcome))
}

func (r *Reconciler) fail(report *Report, kind ObjectKind, key string, err error, entity any) {
	r.markFailed(entity)
	r.observe(report, kind, OutcomeFailed)
	report.RecordFailure(kind, key, NewReconcileError("create or update failed", err).WithObject(kind, key).Error())
	r.logger.Error().Err(err).Str("kind", string(kind)).Str("key", key).Msg("reconcile failed")
}

func (r *Reconciler) cascadeSkip(report *Report, kind ObjectKind, key, parentKey string, entity any) {
	r.markFailed(entity)
	r.observe(report, kind, OutcomeSkipped)
	report.RecordFailure(kind, key, NewParentSkippedError(parentKey).Error())
	r.logger.Warn().Str("kind", string(kind)).Str("key", key).Str("parent", parentKey).Msg("skipped: parent failed")
}

// budgetExpired marks remaining objects as skipped once the run's wall-clock
// budget is gone.
func (r *Reconciler) budgetExpired(ctx context.Context, report *Report, kind ObjectKind, key string, entity any) bool {
	if ctx.Err() == nil {
		return false
	}
	r.markFailed(entity)
	r.observe(report, kind, OutcomeSkipped)
	report.RecordFailure(kind, key, "skipped: run budget exhausted")
	return true
}

func (r *Reconciler) markFailed(entity any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[entity] = true
}

func (r *Reconciler) isFailed(entity any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[entity]
}

func (r *Reconciler) storePrefixID(b *topology.NetworkBlock, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixIDs[b] = id
}

func (r *Reconciler) lookupPrefixID(b *topology.NetworkBlock) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.prefixIDs[b]
	return id, ok
}

func (r *Reconciler) storeDeviceID(n *topology.ComputeNode, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceIDs[n] = id
}

func (r *Reconciler) lookupDeviceID(n *topology.ComputeNode) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.deviceIDs[n]
	return id, ok
}

func (r *Reconciler) storeIfaceID(a *topology.NetworkAttachment, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ifaceIDs[a] = id
}

func (r *Reconciler) lookupIfaceID(a *topology.NetworkAttachment) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ifaceIDs[a]
	return id, ok
}

func kindLabel(kind string) string {
	if kind == "vm" {
		return "Azure Vm"
	}
	return "Azure Network Interface"
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ', r == '_':
			out = append(out, '-')
		}
	}
	return string(out)
}
