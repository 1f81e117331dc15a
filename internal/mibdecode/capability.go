package mibdecode

import "strings"

// Capabilities is the decoded LLDP capability bitmap, reduced to the four
// roles §4.2's device-type precedence cares about.
type Capabilities struct {
	Bridge  bool
	WLANAP  bool
	Router  bool
	Station bool
}

// DecodeCapabilities parses the LLDP remote-capability varbind. If the
// printable form begins "0x" (case-insensitive) the first hex byte is
// tested against the well-known bit positions; otherwise the lowercased
// value is substring-scanned for role keywords.
func DecodeCapabilities(raw string) Capabilities {
	var caps Capabilities
	lower := strings.ToLower(strings.TrimSpace(raw))

	if strings.HasPrefix(lower, "0x") {
		hexDigits := strings.TrimPrefix(lower, "0x")
		if len(hexDigits) >= 2 {
			if b, ok := parseHexByte(hexDigits[:2]); ok {
				caps.Bridge = b&0x20 != 0
				caps.WLANAP = b&0x10 != 0
				caps.Router = b&0x08 != 0
				caps.Station = b&0x01 != 0
			}
		}
		return caps
	}

	caps.WLANAP = strings.Contains(lower, "wlan") || strings.Contains(lower, "accesspoint")
	caps.Router = strings.Contains(lower, "router")
	caps.Bridge = strings.Contains(lower, "bridge")
	caps.Station = strings.Contains(lower, "station")
	return caps
}

func parseHexByte(s string) (byte, bool) {
	if len(s) != 2 {
		return 0, false
	}
	var b byte
	for _, c := range s {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = byte(c - '0')
		case c >= 'a' && c <= 'f':
			v = byte(c-'a') + 10
		default:
			return 0, false
		}
		b = b<<4 | v
	}
	return b, true
}

// DeviceType derives the discovered device-type from capabilities, using the
// precedence WLAN AP > Bridge (switch) > Station-without-Router (server) >
// default router.
func DeviceType(caps Capabilities) string {
	switch {
	case caps.WLANAP:
		return "access_point"
	case caps.Bridge:
		return "switch"
	case caps.Station && !caps.Router:
		return "server"
	default:
		return "router"
	}
}
