// Package hostnamefallback resolves a best-effort display name for a device
// that never answered SNMP, or answered without a sysName, via reverse DNS
// and mDNS PTR lookups. It never overrides a name learned from SNMP.
package hostnamefallback

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver looks up fallback names for an IP address.
type Resolver struct {
	// MDNSTimeout bounds the mDNS UDP exchange. Zero uses a sane default.
	MDNSTimeout time.Duration
}

// New returns a Resolver with default timeouts.
func New() *Resolver {
	return &Resolver{MDNSTimeout: 400 * time.Millisecond}
}

// NeedsFallback reports whether sysName is empty or the LLDP-style sentinel
// "Unknown", the only cases the crawler is allowed to overwrite.
func NeedsFallback(sysName string) bool {
	trimmed := strings.TrimSpace(sysName)
	return trimmed == "" || strings.EqualFold(trimmed, "Unknown")
}

// Resolve returns the first usable name for address, trying reverse DNS
// first and falling back to an mDNS PTR/CNAME query. It returns "", nil if
// neither source produced a name and both failed for ordinary reasons (no
// record, timeout); it returns an error only for a malformed address.
func (r *Resolver) Resolve(ctx context.Context, address string) (string, error) {
	if net.ParseIP(address) == nil {
		return "", fmt.Errorf("hostnamefallback: invalid address %q", address)
	}

	if name, err := reverseDNSLookup(ctx, address); err == nil && name != "" {
		return name, nil
	}

	if name, err := r.lookupMDNS(ctx, address); err == nil && name != "" {
		return name, nil
	}

	return "", nil
}

func reverseDNSLookup(ctx context.Context, address string) (string, error) {
	names, err := net.DefaultResolver.LookupAddr(ctx, address)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		trimmed := strings.TrimSuffix(strings.TrimSpace(name), ".")
		if trimmed != "" {
			return trimmed, nil
		}
	}
	return "", nil
}

func (r *Resolver) lookupMDNS(ctx context.Context, address string) (string, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return "", fmt.Errorf("hostnamefallback: invalid ip %q", address)
	}

	question, err := dns.ReverseAddr(address)
	if err != nil {
		return "", fmt.Errorf("hostnamefallback: reverse: %w", err)
	}

	msg := &dns.Msg{}
	msg.SetQuestion(question, dns.TypePTR)
	msg.RecursionDesired = false

	timeout := r.MDNSTimeout
	if timeout <= 0 {
		timeout = 400 * time.Millisecond
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}

	server := "224.0.0.251:5353"
	if ip.To4() == nil {
		server = "[ff02::fb]:5353"
	}

	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return "", fmt.Errorf("hostnamefallback: exchange: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("hostnamefallback: empty response")
	}

	for _, answer := range resp.Answer {
		switch rr := answer.(type) {
		case *dns.PTR:
			if name := strings.TrimSuffix(strings.TrimSpace(rr.Ptr), "."); name != "" {
				return name, nil
			}
		case *dns.CNAME:
			if name := strings.TrimSuffix(strings.TrimSpace(rr.Target), "."); name != "" {
				return name, nil
			}
		}
	}
	return "", nil
}
