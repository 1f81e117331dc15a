// Package snmpclient provides numeric-OID SNMPv2c GET and WALK primitives.
// It never loads MIB files; every OID is a dotted numeric string and every
// returned value keeps its wire type so callers decode it explicitly.
package snmpclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// ErrorKind classifies an Error so callers can branch without string
// matching, mirroring the kinds named in §7 of the design.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindAuthRefused
	KindDecodeError
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthRefused:
		return "auth-refused"
	case KindDecodeError:
		return "decode-error"
	default:
		return "unknown"
	}
}

// Error wraps a failed SNMP operation with its classified Kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Host string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("snmpclient: %s %s: %s: %v", e.Op, e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op, host string, err error) *Error {
	return &Error{Kind: kind, Op: op, Host: host, Err: err}
}

// Target names the SNMP agent to talk to and the parameters of the
// conversation: community, per-attempt timeout, and retry budget.
type Target struct {
	Host      string
	Port      uint16
	Community string
	Timeout   time.Duration
	Retries   int
}

func (t Target) port() uint16 {
	if t.Port == 0 {
		return 161
	}
	return t.Port
}

// Varbind is one returned (oid, value) pair with type-preserving accessors.
type Varbind struct {
	OID  string
	Type gosnmp.Asn1BER
	pdu  gosnmp.SnmpPDU
}

// AsInt returns the value as an int64. Works for Integer, Gauge32, Counter32,
// Counter64, Uinteger32, and TimeTicks varbinds.
func (v Varbind) AsInt() (int64, bool) {
	switch v.Type {
	case gosnmp.Integer, gosnmp.Gauge32, gosnmp.Counter32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(v.pdu.Value).Int64(), true
	case gosnmp.Counter64:
		if n, ok := v.pdu.Value.(uint64); ok {
			return int64(n), true
		}
		return gosnmp.ToBigInt(v.pdu.Value).Int64(), true
	default:
		return 0, false
	}
}

// AsString returns the printable form of an OctetString varbind.
func (v Varbind) AsString() (string, bool) {
	switch b := v.pdu.Value.(type) {
	case []byte:
		return string(b), true
	case string:
		return b, true
	default:
		return "", false
	}
}

// AsOctets returns the raw bytes of an OctetString varbind, for values that
// are not necessarily printable (e.g. a VLAN egress-port bitmask).
func (v Varbind) AsOctets() ([]byte, bool) {
	switch b := v.pdu.Value.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

// AsOID returns the value as a dotted numeric OID string.
func (v Varbind) AsOID() (string, bool) {
	s, ok := v.pdu.Value.(string)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(s, "."), true
}

// IsAbsent reports whether the agent returned NoSuchObject/NoSuchInstance/EndOfMibView.
func (v Varbind) IsAbsent() bool {
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return true
	default:
		return false
	}
}

// SuffixInts parses the OID suffix (the indices after base) into an int
// slice, used to correlate multi-column table rows by shared index.
func SuffixInts(oid, base string) ([]int64, bool) {
	oid = strings.TrimPrefix(oid, ".")
	base = strings.TrimPrefix(base, ".")
	if !strings.HasPrefix(oid, base+".") {
		return nil, false
	}
	rest := strings.TrimPrefix(oid, base+".")
	if rest == "" {
		return nil, false
	}
	parts := strings.Split(rest, ".")
	out := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// NewTestVarbind builds a Varbind directly, for use by other packages'
// tests that need to exercise decoders without a live SNMP agent.
func NewTestVarbind(oid string, typ gosnmp.Asn1BER, value any) Varbind {
	return Varbind{OID: oid, Type: typ, pdu: gosnmp.SnmpPDU{Name: oid, Type: typ, Value: value}}
}

// Client issues GET/WALK requests. It holds no mutable state and is safe
// for concurrent use by many scan workers at once; each call opens its own
// transport, following the teacher's connect-per-call convention.
type Client struct{}

// NewClient returns a ready-to-use Client.
func NewClient() *Client { return &Client{} }

func (c *Client) connect(ctx context.Context, t Target) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:    t.Host,
		Port:      t.port(),
		Community: t.Community,
		Version:   gosnmp.Version2c,
		Timeout:   t.Timeout,
		Retries:   t.Retries,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return nil, newError(KindTransport, "connect", t.Host, err)
	}
	return g, nil
}

// Get performs a single GET request for the given numeric OIDs. It returns
// one attempt plus t.Retries retries, with t.Timeout applied per attempt
// (gosnmp's own Retries/Timeout fields implement this directly).
func (c *Client) Get(ctx context.Context, t Target, oids []string) ([]Varbind, error) {
	g, err := c.connect(ctx, t)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	result, err := g.Get(oids)
	if err != nil {
		return nil, classifyTransportErr(t.Host, err)
	}
	if result == nil {
		return nil, newError(KindDecodeError, "get", t.Host, fmt.Errorf("nil response"))
	}

	out := make([]Varbind, 0, len(result.Variables))
	for _, pdu := range result.Variables {
		out = append(out, Varbind{OID: strings.TrimPrefix(pdu.Name, "."), Type: pdu.Type, pdu: pdu})
	}
	return out, nil
}

// WalkFunc walks everything under baseOID using GETBULK, invoking fn for
// each row in lexicographic order. Walking stops at the first OID outside
// baseOID's subtree, at end-of-MIB, or at the first non-retryable error.
// fn returning an error aborts the walk and that error is returned.
func (c *Client) WalkFunc(ctx context.Context, t Target, baseOID string, fn func(Varbind) error) error {
	g, err := c.connect(ctx, t)
	if err != nil {
		return err
	}
	defer g.Conn.Close()

	walkErr := g.BulkWalk(baseOID, func(pdu gosnmp.SnmpPDU) error {
		vb := Varbind{OID: strings.TrimPrefix(pdu.Name, "."), Type: pdu.Type, pdu: pdu}
		if vb.IsAbsent() {
			return nil
		}
		return fn(vb)
	})
	if walkErr != nil {
		return classifyTransportErr(t.Host, walkErr)
	}
	return nil
}

// Walk is a convenience wrapper over WalkFunc that collects every row.
func (c *Client) Walk(ctx context.Context, t Target, baseOID string) ([]Varbind, error) {
	var out []Varbind
	err := c.WalkFunc(ctx, t, baseOID, func(vb Varbind) error {
		out = append(out, vb)
		return nil
	})
	return out, err
}

func classifyTransportErr(host string, err error) *Error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return newError(KindTransport, "request", host, err)
	}
	return newError(KindTransport, "request", host, err)
}
