// Package crawler implements the bounded-pool breadth-first frontier
// expansion described in §4.4: seed a frontier from a CIDR or single
// address, probe each round's IPs concurrently, and enqueue freshly
// discovered neighbor IPs for the next round, until the frontier is empty
// or the scan is cancelled.
package crawler

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"netmapper/internal/probe"
	"netmapper/internal/tagging"
)

// MaxWorkers is the hard cap on concurrent probes per scan, per §4.4/§5.
const MaxWorkers = 50

// GraphWriter is the subset of the graph store a Crawler needs. TagWriter is
// embedded because device tagging from sysDescr (§3) runs unconditionally,
// not only when the optional "ports" scan tag enables port-signature tags.
type GraphWriter interface {
	UpsertDevice(ctx context.Context, mapID int64, d probe.Device) error
	UpsertLink(ctx context.Context, mapID int64, source, target string, l LinkAttrs) error
	TagWriter
}

// LinkAttrs is the per-link payload passed to the graph store, independent
// of which side is canonicalized as "source" by the store itself.
type LinkAttrs struct {
	Protocol     string
	SourcePort   string
	TargetPort   string
	Speed        string
	Status       string
	SourceVLAN   string
	TargetVLAN   string
	SourceIsRoot bool
	TargetIsRoot bool
}

// Logger appends a line to a scan's visible log buffer.
type Logger interface {
	Log(format string, args ...any)
}

// Prober is the subset of *probe.Prober a Crawler needs.
type Prober interface {
	Probe(ctx context.Context, ip string, communities []string) probe.Result
}

// NameResolver resolves a best-effort display name for an address that
// never answered SNMP or answered without a sysName (§4.7, supplemental).
type NameResolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}

// TagScanner produces best-effort device tags from an address's open ports
// (§4.8, supplemental).
type TagScanner interface {
	ScanOne(ctx context.Context, ip string) ([]string, error)
}

// TagWriter persists tags produced by a TagScanner.
type TagWriter interface {
	SetDeviceTags(ctx context.Context, mapID int64, ip string, tags []string) error
}

// MetricsSink receives scan-level counters. All methods are no-ops on a nil
// Crawler field, so wiring metrics is optional.
type MetricsSink interface {
	IncProbe(outcome string)
	IncDeviceWritten()
	IncLinkWritten()
}

// Crawler runs one scan to completion (or cancellation).
type Crawler struct {
	prober  Prober
	store   GraphWriter
	log     Logger
	workers int
	zlog    zerolog.Logger

	names      NameResolver
	tagScanner TagScanner
	metrics    MetricsSink
}

// New returns a Crawler. A workers value outside [1, MaxWorkers] is
// replaced by MaxWorkers.
func New(prober Prober, store GraphWriter, logger Logger, workers int, zlog zerolog.Logger) *Crawler {
	if workers <= 0 || workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Crawler{prober: prober, store: store, log: logger, workers: workers, zlog: zlog}
}

// WithHostnameFallback enables the "names" scan tag's reverse-DNS/mDNS
// fallback for devices that never answer SNMP or omit sysName.
func (c *Crawler) WithHostnameFallback(r NameResolver) *Crawler {
	c.names = r
	return c
}

// WithPortTags enables the "ports" scan tag's port-signature tagging,
// merged with the always-on sysDescr tagging at write time. Tags are always
// persisted through the Crawler's GraphWriter/TagWriter.
func (c *Crawler) WithPortTags(scanner TagScanner) *Crawler {
	c.tagScanner = scanner
	return c
}

// WithMetrics attaches a MetricsSink observing probe/write counters.
func (c *Crawler) WithMetrics(m MetricsSink) *Crawler {
	c.metrics = m
	return c
}

// Run seeds the frontier from seed (a CIDR or a single IP) and drives BFS
// expansion until the frontier empties or cancelled() reports true between
// rounds. communities is the ordered candidate list for every probe.
func (c *Crawler) Run(ctx context.Context, mapID int64, seed string, communities []string, cancelled func() bool) {
	frontier, err := SeedFrontier(seed)
	if err != nil {
		c.log.Log("scan aborted: %v", err)
		return
	}

	probed := make(map[string]struct{}, len(frontier))

	for len(frontier) > 0 {
		if cancelled() {
			c.log.Log("scan cancelled, draining in-flight work")
			break
		}

		round := make([]string, 0, len(frontier))
		for _, ip := range frontier {
			if _, seen := probed[ip]; seen {
				continue
			}
			probed[ip] = struct{}{}
			round = append(round, ip)
		}
		frontier = nil
		if len(round) == 0 {
			break
		}

		c.log.Log("probing %d host(s)", len(round))
		next := c.probeRound(ctx, mapID, round, communities, cancelled)
		frontier = append(frontier, next...)
	}

	c.log.Log("Scan complete.")
}

// probeRound dispatches ips to a bounded worker pool and returns the
// concatenated, deduplicated neighbor IPs discovered this round.
func (c *Crawler) probeRound(ctx context.Context, mapID int64, ips []string, communities []string, cancelled func() bool) []string {
	work := make(chan string, len(ips))
	for _, ip := range ips {
		work <- ip
	}
	close(work)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		nextSet = make(map[string]struct{})
	)

	workers := c.workers
	if workers > len(ips) {
		workers = len(ips)
	}
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range work {
				if cancelled() {
					continue
				}
				neighbors := c.probeOne(ctx, mapID, ip, communities)
				mu.Lock()
				for _, n := range neighbors {
					nextSet[n] = struct{}{}
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	out := make([]string, 0, len(nextSet))
	for ip := range nextSet {
		out = append(out, ip)
	}
	return out
}

// probeOne probes one IP, writes its device and link records, and returns
// the neighbor IPs it should hand back to the frontier.
func (c *Crawler) probeOne(ctx context.Context, mapID int64, ip string, communities []string) []string {
	result := c.prober.Probe(ctx, ip, communities)
	if !result.Responded {
		c.incProbe("unresponsive")
		c.zlog.Debug().Str("ip", ip).Msg("probe unresponsive")
		c.applyHostnameFallback(ctx, mapID, ip, "")
		return nil
	}
	c.incProbe("responded")

	c.applyHostnameFallback(ctx, mapID, ip, result.Device.SysName)
	c.applyDeviceTags(ctx, mapID, ip, result.Device.SysDescr)

	if err := c.store.UpsertDevice(ctx, mapID, result.Device); err != nil {
		c.zlog.Error().Err(err).Str("ip", ip).Msg("device upsert failed")
	} else {
		c.incDeviceWritten()
	}

	neighbors := make([]string, 0, len(result.Neighbors))
	for _, n := range result.Neighbors {
		if n.ManagementIP == "" {
			continue
		}
		neighbors = append(neighbors, n.ManagementIP)

		stub := probe.Device{IP: n.ManagementIP, SysName: n.RemoteSysName, DeviceType: n.DeviceType}
		if err := c.store.UpsertDevice(ctx, mapID, stub); err != nil {
			c.zlog.Error().Err(err).Str("ip", n.ManagementIP).Msg("neighbor stub upsert failed")
			continue
		}
		c.incDeviceWritten()

		attrs := LinkAttrs{
			Protocol:     "LLDP",
			SourcePort:   n.LocalPort,
			TargetPort:   n.RemotePortID,
			Speed:        n.Speed,
			Status:       n.Status,
			SourceVLAN:   n.VLAN,
			SourceIsRoot: n.IsRootPort,
		}
		if err := c.store.UpsertLink(ctx, mapID, ip, n.ManagementIP, attrs); err != nil {
			c.zlog.Error().Err(err).Str("source", ip).Str("target", n.ManagementIP).Msg("link upsert failed")
		} else {
			c.incLinkWritten()
		}
	}
	return neighbors
}

// applyHostnameFallback implements §4.7: only fires when currentSysName is
// empty or "Unknown", and only ever bumps the name through a stub device
// upsert — it never touches device-type or any other field.
func (c *Crawler) applyHostnameFallback(ctx context.Context, mapID int64, ip, currentSysName string) {
	if c.names == nil {
		return
	}
	trimmed := currentSysName
	if trimmed != "" && trimmed != "Unknown" {
		return
	}
	name, err := c.names.Resolve(ctx, ip)
	if err != nil || name == "" {
		return
	}
	if err := c.store.UpsertDevice(ctx, mapID, probe.Device{IP: ip, SysName: name}); err != nil {
		c.zlog.Error().Err(err).Str("ip", ip).Msg("hostname fallback upsert failed")
	}
}

// applyDeviceTags implements §3's always-on sysDescr tagging, merged with
// §4.8's optional port-signature tagging when the "ports" scan tag enabled
// it (WithPortTags). Neither signal ever touches device-type or any §8
// invariant; a device with no matching signal simply gets no tags.
func (c *Crawler) applyDeviceTags(ctx context.Context, mapID int64, ip, sysDescr string) {
	suggestions := tagging.SuggestFromSNMP(sysDescr)

	if c.tagScanner != nil {
		portTags, err := c.tagScanner.ScanOne(ctx, ip)
		if err != nil {
			c.zlog.Debug().Err(err).Str("ip", ip).Msg("port tag scan failed")
		}
		for _, t := range portTags {
			suggestions = append(suggestions, tagging.Suggestion{Tag: t, Confidence: 100})
		}
	}

	merged := tagging.MergeSuggestions(suggestions)
	if len(merged) == 0 {
		return
	}
	tags := make([]string, 0, len(merged))
	for _, s := range merged {
		tags = append(tags, s.Tag)
	}
	tags = tagging.NormalizeTagList(tags)
	if len(tags) == 0 {
		return
	}
	if err := c.store.SetDeviceTags(ctx, mapID, ip, tags); err != nil {
		c.zlog.Error().Err(err).Str("ip", ip).Msg("tag write failed")
	}
}

func (c *Crawler) incProbe(outcome string) {
	if c.metrics != nil {
		c.metrics.IncProbe(outcome)
	}
}

func (c *Crawler) incDeviceWritten() {
	if c.metrics != nil {
		c.metrics.IncDeviceWritten()
	}
}

func (c *Crawler) incLinkWritten() {
	if c.metrics != nil {
		c.metrics.IncLinkWritten()
	}
}

// SeedFrontier expands seed into the initial frontier: every usable host
// address of a CIDR (skipping network/broadcast), or the single address
// itself.
func SeedFrontier(seed string) ([]string, error) {
	if !containsSlash(seed) {
		if net.ParseIP(seed) == nil {
			return nil, fmt.Errorf("crawler: invalid address %q", seed)
		}
		return []string{seed}, nil
	}

	ip, ipnet, err := net.ParseCIDR(seed)
	if err != nil {
		return nil, fmt.Errorf("crawler: invalid CIDR %q: %w", seed, err)
	}

	var hosts []string
	for cur := cloneIP(ip.Mask(ipnet.Mask)); ipnet.Contains(cur); incIP(cur) {
		hosts = append(hosts, cur.String())
	}

	if len(hosts) <= 2 {
		return hosts, nil
	}
	// Skip the network and broadcast addresses (strict=false host
	// enumeration): first and last of a sorted, contiguous range.
	return hosts[1 : len(hosts)-1], nil
}

func containsSlash(s string) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
