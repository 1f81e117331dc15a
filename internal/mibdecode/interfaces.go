package mibdecode

import (
	"fmt"

	"netmapper/internal/snmpclient"
)

// BuildInt64Index walks the results of a table walk into a map keyed by the
// table's single index column (the first suffix element past base).
func BuildInt64Index(vbs []snmpclient.Varbind, base string) map[int64]int64 {
	out := make(map[int64]int64, len(vbs))
	for _, vb := range vbs {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, base)
		if !ok || len(suffix) == 0 {
			continue
		}
		n, ok := vb.AsInt()
		if !ok {
			continue
		}
		out[suffix[0]] = n
	}
	return out
}

// BuildStringIndex is BuildInt64Index's counterpart for OctetString tables.
func BuildStringIndex(vbs []snmpclient.Varbind, base string) map[int64]string {
	out := make(map[int64]string, len(vbs))
	for _, vb := range vbs {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, base)
		if !ok || len(suffix) == 0 {
			continue
		}
		s, ok := vb.AsString()
		if !ok {
			continue
		}
		out[suffix[0]] = s
	}
	return out
}

// DecodeIfaceName picks ifName, falling back to ifDescr, falling back to the
// decimal index itself.
func DecodeIfaceName(idx int64, ifName, ifDescr map[int64]string) string {
	if name, ok := ifName[idx]; ok && name != "" {
		return name
	}
	if descr, ok := ifDescr[idx]; ok && descr != "" {
		return descr
	}
	return fmt.Sprintf("%d", idx)
}

// DecodeIfaceSpeed formats interface speed per §4.2: prefer ifHighSpeed
// (Mbps), falling back to ifSpeed (bps). Empty string if neither is usable.
func DecodeIfaceSpeed(idx int64, ifHighSpeed, ifSpeed map[int64]int64) string {
	if mbps, ok := ifHighSpeed[idx]; ok && mbps > 0 {
		if mbps >= 1000 {
			return fmt.Sprintf("%.1f Gbps", float64(mbps)/1000.0)
		}
		return fmt.Sprintf("%d Mbps", mbps)
	}
	bps, ok := ifSpeed[idx]
	if !ok || bps <= 0 {
		return ""
	}
	switch {
	case bps >= 1_000_000_000:
		return fmt.Sprintf("%.1f Gbps", float64(bps)/1_000_000_000.0)
	case bps >= 1_000_000:
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000.0)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

// DecodeIfaceOperStatus maps ifOperStatus to its status text; absent rows
// decode to "Unknown".
func DecodeIfaceOperStatus(idx int64, ifOperStatus map[int64]int64) string {
	val, ok := ifOperStatus[idx]
	if !ok {
		return "Unknown"
	}
	switch val {
	case 1:
		return "Up"
	case 2:
		return "Down"
	case 5:
		return "Dormant"
	default:
		return "Other"
	}
}
