package mibdecode

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"netmapper/internal/snmpclient"
)

// DecodeUntaggedVLAN implements §4.2's untagged-VLAN fallback chain: try the
// Cisco vmVlan table first, then the standard Q-BRIDGE dot1qPvid table, else
// no untagged VLAN (0).
func DecodeUntaggedVLAN(idx int64, vmVlan, dot1qPvid map[int64]int64) int64 {
	if v, ok := vmVlan[idx]; ok && v > 0 {
		return v
	}
	if v, ok := dot1qPvid[idx]; ok && v > 0 {
		return v
	}
	return 0
}

// TaggedVLANs decodes dot1qVlanStaticEgressPorts rows for a single port
// (ifIndex, 1-based) into the sorted set of VLAN ids for which that port's
// egress bit is set, excluding untaggedPVID (a port egressing its own PVID
// untagged is not "tagged" for that VLAN).
func TaggedVLANs(egressRows []snmpclient.Varbind, port int64, untaggedPVID int64) []int64 {
	var out []int64
	for _, vb := range egressRows {
		if vb.IsAbsent() {
			continue
		}
		suffix, ok := snmpclient.SuffixInts(vb.OID, OIDDot1qVlanStaticEgressPorts)
		if !ok || len(suffix) == 0 {
			continue
		}
		vlanID := suffix[len(suffix)-1]
		if vlanID == untaggedPVID {
			continue
		}
		mask, ok := vb.AsOctets()
		if !ok {
			continue
		}
		if portBitSet(mask, port) {
			out = append(out, vlanID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// portBitSet tests whether port P (1-based) is set in a big-endian
// per-octet port bitmask, per §4.2: byte floor((P-1)/8), bit 7-((P-1)%8).
func portBitSet(mask []byte, port int64) bool {
	if port < 1 {
		return false
	}
	byteIdx := (port - 1) / 8
	bitIdx := uint((port - 1) % 8)
	if byteIdx < 0 || int(byteIdx) >= len(mask) {
		return false
	}
	return mask[byteIdx]&(1<<(7-bitIdx)) != 0
}

// FormatVLANDescriptor renders §4.2's "U:<pvid>" / "T:<list>" descriptor.
func FormatVLANDescriptor(untaggedPVID int64, tagged []int64) string {
	var parts []string
	if untaggedPVID > 0 {
		parts = append(parts, fmt.Sprintf("U:%d", untaggedPVID))
	}
	if len(tagged) > 0 {
		ids := make([]string, len(tagged))
		seen := make(map[int64]struct{}, len(tagged))
		unique := ids[:0]
		for _, v := range tagged {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			unique = append(unique, strconv.FormatInt(v, 10))
		}
		parts = append(parts, fmt.Sprintf("T:%s", strings.Join(unique, ",")))
	}
	return strings.Join(parts, ", ")
}
