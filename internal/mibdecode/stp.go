package mibdecode

// RootPort is the decoded dot1dStpRootPort result: IsRoot is true when this
// device itself is the spanning-tree root (root-port value 0), in which
// case IfIndex is meaningless and should be treated as "None" by callers.
type RootPort struct {
	IfIndex int64
	IsRoot  bool
}

// DecodeRootPort translates a bridge-port index to an ifIndex via
// dot1dBasePortIfIndex. If the bridge-port index is 0 the device is the STP
// root. If translation fails, the bridge-port index itself is returned as a
// best-effort ifIndex, per §4.2.
func DecodeRootPort(bridgePort int64, basePortIfIndex map[int64]int64) RootPort {
	if bridgePort == 0 {
		return RootPort{IsRoot: true}
	}
	if ifIndex, ok := basePortIfIndex[bridgePort]; ok {
		return RootPort{IfIndex: ifIndex}
	}
	return RootPort{IfIndex: bridgePort}
}
