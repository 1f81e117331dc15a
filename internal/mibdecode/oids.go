// Package mibdecode turns raw SNMP varbind streams into domain values: system
// identity, interface name/speed/status, LLDP neighbor rows, VLAN membership,
// and STP root port. Every function here is pure — no network I/O.
package mibdecode

// Numeric OIDs named by §4.2. No symbolic MIB names are resolved at runtime.
const (
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysObjectID = "1.3.6.1.2.1.1.2.0"

	OIDIfName       = "1.3.6.1.2.1.31.1.1.1.1"
	OIDIfDescr      = "1.3.6.1.2.1.2.2.1.2"
	OIDIfHighSpeed  = "1.3.6.1.2.1.31.1.1.1.15"
	OIDIfSpeed      = "1.3.6.1.2.1.2.2.1.5"
	OIDIfOperStatus = "1.3.6.1.2.1.2.2.1.8"

	OIDLLDPRemPortID     = "1.0.8802.1.1.2.1.4.1.1.7"
	OIDLLDPRemSysName    = "1.0.8802.1.1.2.1.4.1.1.9"
	OIDLLDPRemCapability = "1.0.8802.1.1.2.1.4.1.1.12"
	OIDLLDPRemManAddr    = "1.0.8802.1.1.2.1.4.2.1.3"

	OIDVmVlan                     = "1.3.6.1.4.1.9.9.68.1.2.2.1.2"
	OIDDot1qPvid                  = "1.3.6.1.2.1.17.7.1.4.5.1.1"
	OIDDot1qVlanStaticEgressPorts = "1.3.6.1.2.1.17.7.1.4.3.1.2"

	OIDDot1dStpRootPort     = "1.3.6.1.2.1.17.2.7.0"
	OIDDot1dBasePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"
)
