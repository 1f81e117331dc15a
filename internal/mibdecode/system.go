package mibdecode

import "netmapper/internal/snmpclient"

// SystemInfo is the decoded result of the three mandatory System GETs.
type SystemInfo struct {
	SysName     string
	SysDescr    string
	SysObjectID string
}

// DecodeSystem matches returned varbinds against the three System OIDs by
// OID, not by position, so a partial response still decodes what arrived.
func DecodeSystem(vbs []snmpclient.Varbind) SystemInfo {
	var info SystemInfo
	for _, vb := range vbs {
		if vb.IsAbsent() {
			continue
		}
		switch vb.OID {
		case OIDSysName:
			info.SysName, _ = vb.AsString()
		case OIDSysDescr:
			info.SysDescr, _ = vb.AsString()
		case OIDSysObjectID:
			if s, ok := vb.AsOID(); ok {
				info.SysObjectID = s
			} else if s, ok := vb.AsString(); ok {
				info.SysObjectID = s
			}
		}
	}
	return info
}
