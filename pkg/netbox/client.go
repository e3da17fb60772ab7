package netbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/azsync/azsync/pkg/telemetry"
)

// ClientConfig holds the connection settings for the NetBox API.
type ClientConfig struct {
	// URL is the NetBox base URL, e.g. "https://netbox.example.com".
	URL string `validate:"required,url"`

	// Token is the API token.
	Token string `validate:"required"`

	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration
}

// Client talks to the NetBox REST API. TLS certificates are verified with the
// standard transport defaults; there is deliberately no insecure mode.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

var _ Store = (*Client)(nil)

// NewClient builds a NetBox client.
func NewClient(cfg ClientConfig, logger zerolog.Logger, metrics *telemetry.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid netbox url %q: %w", cfg.URL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "netbox").Logger(),
		metrics: metrics,
	}, nil
}

// apiError is a non-2xx response from NetBox.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("netbox returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path, collection string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.metrics.IncTargetRequest(method, collection)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// Wire types. NetBox returns nested objects for status, tags, and references;
// records flatten them.

type apiList[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

type apiChoice struct {
	Value string `json:"value"`
}

type apiRef struct {
	ID int64 `json:"id"`
}

type apiTag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func tagIDs(tags []apiTag) []int64 {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func choiceValue(c *apiChoice) string {
	if c == nil {
		return ""
	}
	return c.Value
}

func refID(r *apiRef) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}

// findOne returns the first matching record in a collection, or nil.
func findOne[T any](ctx context.Context, c *Client, path, collection string, query url.Values) (*T, error) {
	var list apiList[T]
	if err := c.do(ctx, http.MethodGet, path, collection, query, nil, &list); err != nil {
		return nil, err
	}
	if list.Count == 0 || len(list.Results) == 0 {
		return nil, nil
	}
	return &list.Results[0], nil
}

// --- tags ---

// EnsureTag returns the tag with the given slug, creating it when absent.
func (c *Client) EnsureTag(ctx context.Context, name, slug, description string) (*Tag, error) {
	found, err := findOne[apiTag](ctx, c, "/api/extras/tags/", "tags", url.Values{"slug": {slug}})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return &Tag{ID: found.ID, Name: found.Name, Slug: found.Slug, Description: found.Description}, nil
	}

	c.logger.Info().Str("slug", slug).Msg("creating tag")
	var created apiTag
	err = c.do(ctx, http.MethodPost, "/api/extras/tags/", "tags", nil, map[string]any{
		"name":        name,
		"slug":        slug,
		"description": description,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &Tag{ID: created.ID, Name: created.Name, Slug: created.Slug, Description: created.Description}, nil
}

// --- dcim scaffolding ---

type apiSite struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// EnsureSite returns the named site, creating it when absent.
func (c *Client) EnsureSite(ctx context.Context, name, slug, description string, tags []int64) (*Site, error) {
	found, err := findOne[apiSite](ctx, c, "/api/dcim/sites/", "sites", url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return &Site{ID: found.ID, Name: found.Name, Slug: found.Slug}, nil
	}

	c.logger.Info().Str("site", name).Msg("creating site")
	var created apiSite
	err = c.do(ctx, http.MethodPost, "/api/dcim/sites/", "sites", nil, map[string]any{
		"name":        name,
		"slug":        slug,
		"status":      "active",
		"description": description,
		"tags":        tagList(tags),
	}, &created)
	if err != nil {
		return nil, err
	}
	return &Site{ID: created.ID, Name: created.Name, Slug: created.Slug}, nil
}

type apiRole struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// EnsureDeviceRole returns the named device role, creating it when absent.
func (c *Client) EnsureDeviceRole(ctx context.Context, name, slug string, vmRole bool, tags []int64) (*DeviceRole, error) {
	found, err := findOne[apiRole](ctx, c, "/api/dcim/device-roles/", "device-roles", url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return &DeviceRole{ID: found.ID, Name: found.Name, Slug: found.Slug}, nil
	}

	c.logger.Info().Str("role", name).Msg("creating device role")
	var created apiRole
	err = c.do(ctx, http.MethodPost, "/api/dcim/device-roles/", "device-roles", nil, map[string]any{
		"name":    name,
		"slug":    slug,
		"vm_role": vmRole,
		"tags":    tagList(tags),
	}, &created)
	if err != nil {
		return nil, err
	}
	return &DeviceRole{ID: created.ID, Name: created.Name, Slug: created.Slug}, nil
}

type apiDeviceType struct {
	ID    int64  `json:"id"`
	Model string `json:"model"`
	Slug  string `json:"slug"`
}

// EnsureDeviceType returns the device type for the model, creating it and its
// manufacturer when absent.
func (c *Client) EnsureDeviceType(ctx context.Context, model, slug, manufacturer string, tags []int64) (*DeviceType, error) {
	found, err := findOne[apiDeviceType](ctx, c, "/api/dcim/device-types/", "device-types", url.Values{"model": {model}})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return &DeviceType{ID: found.ID, Model: found.Model, Slug: found.Slug}, nil
	}

	manufacturerID, err := c.ensureManufacturer(ctx, manufacturer)
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("model", model).Msg("creating device type")
	var created apiDeviceType
	err = c.do(ctx, http.MethodPost, "/api/dcim/device-types/", "device-types", nil, map[string]any{
		"model":        model,
		"slug":         slug,
		"manufacturer": manufacturerID,
		"tags":         tagList(tags),
	}, &created)
	if err != nil {
		return nil, err
	}
	return &DeviceType{ID: created.ID, Model: created.Model, Slug: created.Slug}, nil
}

type apiManufacturer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (c *Client) ensureManufacturer(ctx context.Context, name string) (int64, error) {
	found, err := findOne[apiManufacturer](ctx, c, "/api/dcim/manufacturers/", "manufacturers", url.Values{"name": {name}})
	if err != nil {
		return 0, err
	}
	if found != nil {
		return found.ID, nil
	}

	c.logger.Info().Str("manufacturer", name).Msg("creating manufacturer")
	var created apiManufacturer
	err = c.do(ctx, http.MethodPost, "/api/dcim/manufacturers/", "manufacturers", nil, map[string]any{
		"name": name,
		"slug": slugify(name),
	}, &created)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// --- prefixes ---

type apiPrefix struct {
	ID          int64      `json:"id"`
	Prefix      string     `json:"prefix"`
	Description string     `json:"description"`
	Status      *apiChoice `json:"status"`
	Tags        []apiTag   `json:"tags"`
}

func (p *apiPrefix) record() *Prefix {
	return &Prefix{
		ID:          p.ID,
		Prefix:      p.Prefix,
		Description: p.Description,
		Status:      choiceValue(p.Status),
		TagIDs:      tagIDs(p.Tags),
	}
}

// FindPrefix looks a prefix up by its exact CIDR.
func (c *Client) FindPrefix(ctx context.Context, cidr string) (*Prefix, error) {
	found, err := findOne[apiPrefix](ctx, c, "/api/ipam/prefixes/", "prefixes", url.Values{"prefix": {cidr}})
	if err != nil || found == nil {
		return nil, err
	}
	return found.record(), nil
}

func prefixBody(w PrefixWrite) map[string]any {
	body := map[string]any{
		"prefix":      w.Prefix,
		"description": w.Description,
		"status":      w.Status,
		"tags":        tagList(w.TagIDs),
	}
	// NetBox derives prefix hierarchy from containment; the parent reference
	// is advisory and ignored by servers that do not model it.
	if w.ParentID != nil {
		body["parent"] = *w.ParentID
	}
	return body
}

// CreatePrefix creates a prefix record.
func (c *Client) CreatePrefix(ctx context.Context, w PrefixWrite) (*Prefix, error) {
	var created apiPrefix
	if err := c.do(ctx, http.MethodPost, "/api/ipam/prefixes/", "prefixes", nil, prefixBody(w), &created); err != nil {
		return nil, err
	}
	return created.record(), nil
}

// UpdatePrefix patches an existing prefix record.
func (c *Client) UpdatePrefix(ctx context.Context, id int64, w PrefixWrite) (*Prefix, error) {
	var updated apiPrefix
	path := fmt.Sprintf("/api/ipam/prefixes/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, "prefixes", nil, prefixBody(w), &updated); err != nil {
		return nil, err
	}
	return updated.record(), nil
}

// --- devices ---

type apiDevice struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Site       *apiRef    `json:"site"`
	Role       *apiRef    `json:"role"`
	DeviceType *apiRef    `json:"device_type"`
	Status     *apiChoice `json:"status"`
	Tags       []apiTag   `json:"tags"`
}

func (d *apiDevice) record() *Device {
	return &Device{
		ID:     d.ID,
		Name:   d.Name,
		SiteID: refID(d.Site),
		RoleID: refID(d.Role),
		TypeID: refID(d.DeviceType),
		Status: choiceValue(d.Status),
		TagIDs: tagIDs(d.Tags),
	}
}

// FindDevice looks a device up by name within a site.
func (c *Client) FindDevice(ctx context.Context, name string, siteID int64) (*Device, error) {
	query := url.Values{
		"name":    {name},
		"site_id": {strconv.FormatInt(siteID, 10)},
	}
	found, err := findOne[apiDevice](ctx, c, "/api/dcim/devices/", "devices", query)
	if err != nil || found == nil {
		return nil, err
	}
	return found.record(), nil
}

func deviceBody(w DeviceWrite) map[string]any {
	return map[string]any{
		"name":        w.Name,
		"site":        w.SiteID,
		"role":        w.RoleID,
		"device_type": w.TypeID,
		"status":      w.Status,
		"tags":        tagList(w.TagIDs),
	}
}

// CreateDevice creates a device record.
func (c *Client) CreateDevice(ctx context.Context, w DeviceWrite) (*Device, error) {
	var created apiDevice
	if err := c.do(ctx, http.MethodPost, "/api/dcim/devices/", "devices", nil, deviceBody(w), &created); err != nil {
		return nil, err
	}
	return created.record(), nil
}

// UpdateDevice patches an existing device record.
func (c *Client) UpdateDevice(ctx context.Context, id int64, w DeviceWrite) (*Device, error) {
	var updated apiDevice
	path := fmt.Sprintf("/api/dcim/devices/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, "devices", nil, deviceBody(w), &updated); err != nil {
		return nil, err
	}
	return updated.record(), nil
}

// --- interfaces ---

type apiInterface struct {
	ID     int64      `json:"id"`
	Device *apiRef    `json:"device"`
	Name   string     `json:"name"`
	Type   *apiChoice `json:"type"`
	MAC    string     `json:"mac_address"`
	Tags   []apiTag   `json:"tags"`
}

func (i *apiInterface) record() *Interface {
	return &Interface{
		ID:       i.ID,
		DeviceID: refID(i.Device),
		Name:     i.Name,
		Type:     choiceValue(i.Type),
		MAC:      i.MAC,
		TagIDs:   tagIDs(i.Tags),
	}
}

// FindInterface looks an interface up by name on a device.
func (c *Client) FindInterface(ctx context.Context, deviceID int64, name string) (*Interface, error) {
	query := url.Values{
		"device_id": {strconv.FormatInt(deviceID, 10)},
		"name":      {name},
	}
	found, err := findOne[apiInterface](ctx, c, "/api/dcim/interfaces/", "interfaces", query)
	if err != nil || found == nil {
		return nil, err
	}
	return found.record(), nil
}

func interfaceBody(w InterfaceWrite) map[string]any {
	body := map[string]any{
		"device": w.DeviceID,
		"name":   w.Name,
		"type":   w.Type,
		"tags":   tagList(w.TagIDs),
	}
	if w.MAC != "" {
		body["mac_address"] = w.MAC
	}
	return body
}

// CreateInterface creates an interface record.
func (c *Client) CreateInterface(ctx context.Context, w InterfaceWrite) (*Interface, error) {
	var created apiInterface
	if err := c.do(ctx, http.MethodPost, "/api/dcim/interfaces/", "interfaces", nil, interfaceBody(w), &created); err != nil {
		return nil, err
	}
	return created.record(), nil
}

// UpdateInterface patches an existing interface record.
func (c *Client) UpdateInterface(ctx context.Context, id int64, w InterfaceWrite) (*Interface, error) {
	var updated apiInterface
	path := fmt.Sprintf("/api/dcim/interfaces/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, "interfaces", nil, interfaceBody(w), &updated); err != nil {
		return nil, err
	}
	return updated.record(), nil
}

// --- IP addresses ---

type apiIPAddress struct {
	ID                 int64      `json:"id"`
	Address            string     `json:"address"`
	Description        string     `json:"description"`
	Status             *apiChoice `json:"status"`
	AssignedObjectType string     `json:"assigned_object_type"`
	AssignedObjectID   *int64     `json:"assigned_object_id"`
	Tags               []apiTag   `json:"tags"`
}

func (a *apiIPAddress) record() *IPAddress {
	return &IPAddress{
		ID:                 a.ID,
		Address:            a.Address,
		Description:        a.Description,
		Status:             choiceValue(a.Status),
		AssignedObjectType: a.AssignedObjectType,
		AssignedObjectID:   a.AssignedObjectID,
		TagIDs:             tagIDs(a.Tags),
	}
}

// FindIP looks an IP address record up by its full address (with mask).
func (c *Client) FindIP(ctx context.Context, address string) (*IPAddress, error) {
	found, err := findOne[apiIPAddress](ctx, c, "/api/ipam/ip-addresses/", "ip-addresses", url.Values{"address": {address}})
	if err != nil || found == nil {
		return nil, err
	}
	return found.record(), nil
}

func ipBody(w IPAddressWrite) map[string]any {
	body := map[string]any{
		"address":     w.Address,
		"description": w.Description,
		"status":      w.Status,
		"tags":        tagList(w.TagIDs),
	}
	if w.AssignedObjectID != nil {
		body["assigned_object_type"] = w.AssignedObjectType
		body["assigned_object_id"] = *w.AssignedObjectID
	}
	return body
}

// CreateIP creates an IP address record.
func (c *Client) CreateIP(ctx context.Context, w IPAddressWrite) (*IPAddress, error) {
	var created apiIPAddress
	if err := c.do(ctx, http.MethodPost, "/api/ipam/ip-addresses/", "ip-addresses", nil, ipBody(w), &created); err != nil {
		return nil, err
	}
	return created.record(), nil
}

// UpdateIP patches an existing IP address record.
func (c *Client) UpdateIP(ctx context.Context, id int64, w IPAddressWrite) (*IPAddress, error) {
	var updated apiIPAddress
	path := fmt.Sprintf("/api/ipam/ip-addresses/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, "ip-addresses", nil, ipBody(w), &updated); err != nil {
		return nil, err
	}
	return updated.record(), nil
}

// tagList keeps the JSON value a list rather than null when no tags apply.
func tagList(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}
