// Package probe implements the per-IP device probe sequence: pin a working
// community, discover System identity, walk LLDP neighbors, and enrich each
// neighbor with interface name/speed/status/VLAN/root-port attributes.
package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"netmapper/internal/mibdecode"
	"netmapper/internal/snmpclient"
)

// Timeouts groups the per-call-class timeout/retry budgets a Prober applies,
// matching §5's mandated values (exposed as configuration, not hardcoded).
type Timeouts struct {
	SystemTimeout time.Duration
	SystemRetries int
	WalkTimeout   time.Duration
	WalkRetries   int
	DetailTimeout time.Duration
	DetailRetries int
}

// Transport is the subset of *snmpclient.Client a Prober needs. Tests
// substitute a fake to exercise the probe sequence without a live agent.
type Transport interface {
	Get(ctx context.Context, t snmpclient.Target, oids []string) ([]snmpclient.Varbind, error)
	Walk(ctx context.Context, t snmpclient.Target, baseOID string) ([]snmpclient.Varbind, error)
}

// DefaultTimeouts returns §5's literal numbers.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		SystemTimeout: 1500 * time.Millisecond,
		SystemRetries: 1,
		WalkTimeout:   3 * time.Second,
		WalkRetries:   2,
		DetailTimeout: 2 * time.Second,
		DetailRetries: 1,
	}
}

// Device is the positive result of a probe: everything known about the
// probed host itself.
type Device struct {
	IP          string
	SysName     string
	SysDescr    string
	SysObjectID string
	DeviceType  string
}

// Neighbor is one LLDP-adjacent device plus the local/remote port
// attributes observed from the probed side.
type Neighbor struct {
	ManagementIP  string
	RemoteSysName string
	RemotePortID  string
	LocalPort     string
	Speed         string
	Status        string
	VLAN          string
	IsRootPort    bool
	DeviceType    string
}

// Result is what a single probe produces: always a Device (possibly mostly
// empty if every community failed), plus whatever neighbors were found.
type Result struct {
	Device     Device
	Neighbors  []Neighbor
	Responded  bool
	Community  string
}

// Prober runs the §4.3 sequence against one host at a time. It holds no
// per-host state and is safe for concurrent use by many crawler workers.
type Prober struct {
	client   Transport
	timeouts Timeouts
	log      zerolog.Logger
}

// New returns a Prober using client for all SNMP traffic.
func New(client Transport, timeouts Timeouts, log zerolog.Logger) *Prober {
	return &Prober{client: client, timeouts: timeouts, log: log}
}

// Probe runs the full device-probe sequence against ip, trying each
// community in order until one answers the three System GETs. A
// completely unresponsive host still returns a Result with Responded=false
// and a Device carrying only the IP and the default "router" type — callers
// decide whether to keep or discard it.
func (p *Prober) Probe(ctx context.Context, ip string, communities []string) Result {
	community, sysInfo, ok := p.pinCommunity(ctx, ip, communities)
	if !ok {
		return Result{Device: Device{IP: ip, DeviceType: "router"}, Responded: false}
	}

	target := snmpclient.Target{
		Host:      ip,
		Community: community,
		Timeout:   p.timeouts.WalkTimeout,
		Retries:   p.timeouts.WalkRetries,
	}

	neighborRows := p.walkLLDP(ctx, target)
	rootPort := p.rootPort(ctx, target)

	deviceType := "router"
	neighbors := make([]Neighbor, 0, len(neighborRows))
	for _, row := range neighborRows {
		caps := mibdecode.DecodeCapabilities(row.Capability)
		nDeviceType := mibdecode.DeviceType(caps)

		n := Neighbor{
			ManagementIP:  row.ManagementIP,
			RemoteSysName: row.RemoteSysName,
			RemotePortID:  row.RemotePortID,
			DeviceType:    nDeviceType,
			Status:        "Unknown",
		}

		if row.LocalPort > 0 {
			p.enrichLocalPort(ctx, target, row.LocalPort, rootPort, &n)
		}
		neighbors = append(neighbors, n)
	}

	// Capability bits on an LLDP row describe the remote neighbor, never
	// this device. Absent a way to learn its own role, a directly-probed
	// device is always emitted as "router"; any better classification
	// comes from whoever names it as a neighbor (see Neighbor.DeviceType
	// and the graph store's device-type merge rule).

	device := Device{
		IP:          ip,
		SysName:     sysInfo.SysName,
		SysDescr:    sysInfo.SysDescr,
		SysObjectID: sysInfo.SysObjectID,
		DeviceType:  deviceType,
	}

	return Result{Device: device, Neighbors: neighbors, Responded: true, Community: community}
}

// pinCommunity tries each candidate community for the three System GETs in
// order, returning the first one that answers.
func (p *Prober) pinCommunity(ctx context.Context, ip string, communities []string) (string, mibdecode.SystemInfo, bool) {
	oids := []string{mibdecode.OIDSysName, mibdecode.OIDSysDescr, mibdecode.OIDSysObjectID}
	for _, community := range communities {
		target := snmpclient.Target{
			Host:      ip,
			Community: community,
			Timeout:   p.timeouts.SystemTimeout,
			Retries:   p.timeouts.SystemRetries,
		}
		vbs, err := p.client.Get(ctx, target, oids)
		if err != nil {
			p.log.Debug().Str("ip", ip).Str("community", community).Err(err).Msg("system probe failed")
			continue
		}
		info := mibdecode.DecodeSystem(vbs)
		if info.SysName == "" && info.SysDescr == "" && info.SysObjectID == "" {
			continue
		}
		return community, info, true
	}
	return "", mibdecode.SystemInfo{}, false
}

func (p *Prober) walkLLDP(ctx context.Context, target snmpclient.Target) []mibdecode.NeighborRow {
	portID, err := p.client.Walk(ctx, target, mibdecode.OIDLLDPRemPortID)
	if err != nil {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("lldp port-id walk failed")
	}
	sysName, err := p.client.Walk(ctx, target, mibdecode.OIDLLDPRemSysName)
	if err != nil {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("lldp sysname walk failed")
	}
	capability, err := p.client.Walk(ctx, target, mibdecode.OIDLLDPRemCapability)
	if err != nil {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("lldp capability walk failed")
	}
	manAddr, err := p.client.Walk(ctx, target, mibdecode.OIDLLDPRemManAddr)
	if err != nil {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("lldp mgmt-address walk failed")
	}
	return mibdecode.CorrelateLLDPRows(portID, sysName, capability, manAddr)
}

func (p *Prober) rootPort(ctx context.Context, target snmpclient.Target) mibdecode.RootPort {
	detail := target
	detail.Timeout = p.timeouts.DetailTimeout
	detail.Retries = p.timeouts.DetailRetries

	vbs, err := p.client.Get(ctx, detail, []string{mibdecode.OIDDot1dStpRootPort})
	if err != nil || len(vbs) == 0 {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("stp root-port get failed")
		return mibdecode.RootPort{IsRoot: true}
	}
	bridgePort, ok := vbs[0].AsInt()
	if !ok {
		return mibdecode.RootPort{IsRoot: true}
	}

	translationRows, err := p.client.Walk(ctx, detail, mibdecode.OIDDot1dBasePortIfIndex)
	if err != nil {
		p.log.Debug().Str("ip", target.Host).Err(err).Msg("bridge-port translation walk failed")
	}
	translations := mibdecode.BuildInt64Index(translationRows, mibdecode.OIDDot1dBasePortIfIndex)
	return mibdecode.DecodeRootPort(bridgePort, translations)
}

// enrichLocalPort fetches name/speed/status/VLAN for the local ifIndex a
// neighbor was discovered on, and marks is-root-port when it matches the
// device's translated STP root ifIndex.
func (p *Prober) enrichLocalPort(ctx context.Context, target snmpclient.Target, ifIndex int64, rootPort mibdecode.RootPort, n *Neighbor) {
	detail := target
	detail.Timeout = p.timeouts.DetailTimeout
	detail.Retries = p.timeouts.DetailRetries

	ifNameRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDIfName)
	ifDescrRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDIfDescr)
	ifHighSpeedRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDIfHighSpeed)
	ifSpeedRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDIfSpeed)
	ifOperStatusRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDIfOperStatus)
	vmVlanRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDVmVlan)
	pvidRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDDot1qPvid)
	egressRows, _ := p.client.Walk(ctx, detail, mibdecode.OIDDot1qVlanStaticEgressPorts)

	ifName := mibdecode.BuildStringIndex(ifNameRows, mibdecode.OIDIfName)
	ifDescr := mibdecode.BuildStringIndex(ifDescrRows, mibdecode.OIDIfDescr)
	ifHighSpeed := mibdecode.BuildInt64Index(ifHighSpeedRows, mibdecode.OIDIfHighSpeed)
	ifSpeed := mibdecode.BuildInt64Index(ifSpeedRows, mibdecode.OIDIfSpeed)
	ifOperStatus := mibdecode.BuildInt64Index(ifOperStatusRows, mibdecode.OIDIfOperStatus)
	vmVlan := mibdecode.BuildInt64Index(vmVlanRows, mibdecode.OIDVmVlan)
	pvid := mibdecode.BuildInt64Index(pvidRows, mibdecode.OIDDot1qPvid)

	n.LocalPort = mibdecode.DecodeIfaceName(ifIndex, ifName, ifDescr)
	n.Speed = mibdecode.DecodeIfaceSpeed(ifIndex, ifHighSpeed, ifSpeed)
	n.Status = mibdecode.DecodeIfaceOperStatus(ifIndex, ifOperStatus)

	untagged := mibdecode.DecodeUntaggedVLAN(ifIndex, vmVlan, pvid)
	tagged := mibdecode.TaggedVLANs(egressRows, ifIndex, untagged)
	n.VLAN = mibdecode.FormatVLANDescriptor(untagged, tagged)

	n.IsRootPort = !rootPort.IsRoot && rootPort.IfIndex == ifIndex
}
