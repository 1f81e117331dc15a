package mibdecode

import (
	"fmt"

	"netmapper/internal/snmpclient"
)

// NeighborRow is one correlated LLDP remote-systems-table row: a local port
// advertising a connection to a remote system, before interface detail and
// VLAN/root-port enrichment are applied.
type NeighborRow struct {
	LocalPort     int64
	RemoteIndex   int64
	RemotePortID  string
	RemoteSysName string
	Capability    string
	ManagementIP  string
}

type lldpKey struct {
	localPort   int64
	remoteIndex int64
}

// capabilityLiteral renders the raw lldpRemSysCapEnabled octets the way
// DecodeCapabilities expects: a real agent sends the capability bitmap as
// one or two octets (e.g. 0x10), which always render as hex ("0x10"), even
// when a bitmap byte happens to be printable ASCII (0x20, Bridge, is a
// space). A printable value longer than two octets (a keyword string, in
// tests or from an unusual agent) passes through unchanged.
func capabilityLiteral(octets []byte) string {
	if len(octets) > 2 && isPrintableASCII(octets) {
		return string(octets)
	}
	return fmt.Sprintf("0x%x", octets)
}

func isPrintableASCII(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// CorrelateLLDPRows joins the four LLDP table walks by their shared
// (localPortNum, remoteIndex) suffix, per §4.2's column correlation rule.
// A missing column for a given key simply leaves that field zero-valued;
// the row is still emitted as long as at least one column named it.
func CorrelateLLDPRows(portIDRows, sysNameRows, capabilityRows, manAddrRows []snmpclient.Varbind) []NeighborRow {
	rows := make(map[lldpKey]*NeighborRow)

	get := func(key lldpKey) *NeighborRow {
		if row, ok := rows[key]; ok {
			return row
		}
		row := &NeighborRow{LocalPort: key.localPort, RemoteIndex: key.remoteIndex}
		rows[key] = row
		return row
	}

	for _, vb := range portIDRows {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, OIDLLDPRemPortID)
		if !ok || len(suffix) < 3 {
			continue
		}
		s, _ := vb.AsString()
		get(lldpKey{suffix[1], suffix[2]}).RemotePortID = s
	}

	for _, vb := range sysNameRows {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, OIDLLDPRemSysName)
		if !ok || len(suffix) < 3 {
			continue
		}
		s, _ := vb.AsString()
		get(lldpKey{suffix[1], suffix[2]}).RemoteSysName = s
	}

	for _, vb := range capabilityRows {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, OIDLLDPRemCapability)
		if !ok || len(suffix) < 3 {
			continue
		}
		octets, _ := vb.AsOctets()
		get(lldpKey{suffix[1], suffix[2]}).Capability = capabilityLiteral(octets)
	}

	for _, vb := range manAddrRows {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, OIDLLDPRemManAddr)
		if !ok || len(suffix) < 9 {
			continue
		}
		ip, ok := DecodeManagementIP(suffix[3:])
		if !ok {
			continue
		}
		get(lldpKey{suffix[1], suffix[2]}).ManagementIP = ip
	}

	out := make([]NeighborRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out
}

// DecodeManagementIP decodes the management-address suffix that follows
// remoteIndex: subtype, addrLen, then addrLen address octets. Only
// subtype=1 (IPv4) with addrLen=4 is accepted; everything else (notably
// subtype=2, IPv6) is ignored per the IPv6 management-address Non-goal.
func DecodeManagementIP(suffix []int64) (string, bool) {
	if len(suffix) < 6 {
		return "", false
	}
	subtype := suffix[0]
	addrLen := suffix[1]
	if subtype != 1 || addrLen != 4 {
		return "", false
	}
	a, b, c, d := suffix[2], suffix[3], suffix[4], suffix[5]
	for _, octet := range []int64{a, b, c, d} {
		if octet < 0 || octet > 255 {
			return "", false
		}
	}
	return fmt.Sprintf("%d.%d.%d.%d", a, b, c, d), true
}
