// Package portscan implements the optional, off-by-default port-based tag
// enrichment: a lightweight nmap scan against an allowlisted CIDR/port set,
// whose open-port signatures feed internal/tagging heuristics to produce
// device tags. It never touches device identity or device-type.
package portscan

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"netmapper/internal/tagging"
)

// Config controls whether and how the port scan runs.
type Config struct {
	Enabled   bool
	Allowlist []netip.Prefix
	Ports     []int
	Timeout   time.Duration
	Workers   int
}

// Scanner runs the configured port scan against a set of responsive IPs.
type Scanner struct {
	cfg     Config
	nmapBin string
}

// New resolves the nmap binary once and returns a Scanner. unavailable
// reports why scanning is disabled, if it is.
func New(cfg Config) (s *Scanner, unavailable string) {
	if !cfg.Enabled {
		return &Scanner{cfg: cfg}, "disabled"
	}
	if len(cfg.Allowlist) == 0 || len(cfg.Ports) == 0 {
		return &Scanner{cfg: cfg}, "no_allowlist_or_ports"
	}
	path, err := exec.LookPath("nmap")
	if err != nil {
		return &Scanner{cfg: cfg}, "nmap_not_found"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Scanner{cfg: cfg, nmapBin: path}, ""
}

// Ready reports whether the scanner can actually run scans.
func (s *Scanner) Ready() bool {
	return s != nil && s.cfg.Enabled && s.nmapBin != ""
}

// ScanOne scans a single IP and returns the tags its open ports imply, per
// internal/tagging's port-signature heuristics. It returns nil, nil if the
// address is outside the allowlist or nothing distinctive was found.
func (s *Scanner) ScanOne(ctx context.Context, ip string) ([]string, error) {
	if !s.Ready() {
		return nil, nil
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !allowed(addr, s.cfg.Allowlist) {
		return nil, nil
	}

	portArg := joinPorts(s.cfg.Ports)
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := exec.CommandContext(scanCtx, s.nmapBin,
		"-oX", "-",
		"-Pn",
		"-sT",
		"--host-timeout", s.cfg.Timeout.String(),
		"--max-retries", "1",
		"--open",
		"-p", portArg,
		ip,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("portscan: nmap: %w", err)
	}

	open, err := parseOpenPorts(out)
	if err != nil {
		return nil, fmt.Errorf("portscan: parse: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}

	suggestions := tagging.SuggestFromOpenPorts(open)
	tags := make([]string, 0, len(suggestions))
	for _, sug := range suggestions {
		tags = append(tags, sug.Tag)
	}
	return tagging.NormalizeTagList(tags), nil
}

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Ports []nmapPort `xml:"ports>port"`
}

type nmapPort struct {
	Protocol string    `xml:"protocol,attr"`
	PortID   int       `xml:"portid,attr"`
	State    nmapState `xml:"state"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

func parseOpenPorts(xmlOut []byte) ([]int32, error) {
	var run nmapRun
	if err := xml.Unmarshal(xmlOut, &run); err != nil {
		return nil, err
	}
	var open []int32
	for _, h := range run.Hosts {
		for _, p := range h.Ports {
			if strings.ToLower(p.State.State) != "open" {
				continue
			}
			if p.PortID <= 0 || p.PortID > 65535 {
				continue
			}
			open = append(open, int32(p.PortID))
		}
	}
	return open, nil
}

func joinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		if p <= 0 || p > 65535 {
			continue
		}
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

func allowed(ip netip.Addr, allowlist []netip.Prefix) bool {
	if !ip.IsValid() {
		return false
	}
	for _, p := range allowlist {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
