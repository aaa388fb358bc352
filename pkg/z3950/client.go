package z3950

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	defaultDialTimeout  = 10 * time.Second
	maxMessageSize      = 65536
	resultSetName       = "default"
	closeReasonFinished = 211
)

var (
	// ErrInitRejected is returned when the target refuses the session.
	ErrInitRejected = errors.New("z3950: initialization rejected")
	// ErrServerClosed is returned when the target answers with a Close PDU.
	ErrServerClosed = errors.New("z3950: server closed session")
	// ErrNotConnected is returned for operations on a client without a
	// connection.
	ErrNotConnected = errors.New("z3950: not connected")
)

// Client is a single Z39.50 association. It is not safe for concurrent use.
type Client struct {
	host string
	port int

	conn   net.Conn
	broken bool
}

func NewClient(host string, port int) *Client {
	return &Client{host: host, port: port}
}

// Addr is the host:port the client dials.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Healthy reports whether the connection can be reused.
func (c *Client) Healthy() bool {
	return c.conn != nil && !c.broken
}

func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return err
	}
	c.conn = conn
	c.broken = false
	return nil
}

// Close sends a Close PDU on a healthy connection and releases it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if !c.broken {
		pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, TagClose, nil, "Close")
		pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, closeReasonFinished, 0, "CloseReason"))
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = c.conn.Write(pdu.Bytes())
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip writes pdu and reads one response. The context deadline bounds
// the exchange and cancellation aborts blocked I/O. Any failure marks the
// connection unusable.
func (c *Client) roundTrip(ctx context.Context, pdu *ber.Packet) (*ber.Packet, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	pkt, err := c.exchange(pdu)
	if err != nil {
		c.broken = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return pkt, nil
}

func (c *Client) exchange(pdu *ber.Packet) (*ber.Packet, error) {
	if _, err := c.conn.Write(pdu.Bytes()); err != nil {
		return nil, fmt.Errorf("write %s: %w", pdu.Description, err)
	}
	pkt, err := ber.ReadPacket(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response to %s: %w", pdu.Description, err)
	}
	if pkt.Tag == TagClose {
		reason := int64(-1)
		for _, child := range pkt.Children {
			if child.Tag == closeReasonFinished {
				reason = decodeInt(child)
			}
		}
		return nil, fmt.Errorf("%w: reason %d", ErrServerClosed, reason)
	}
	return pkt, nil
}

// Init negotiates protocol version 3 with search and present options.
func (c *Client) Init(ctx context.Context) error {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, TagInitializeRequest, nil, "InitializeRequest")

	ver := ber.Encode(ber.ClassContext, ber.TypePrimitive, 3, nil, "ProtocolVersion")
	ver.Data.Write([]byte{0x00, 0x20})
	pdu.AppendChild(ver)

	opts := ber.Encode(ber.ClassContext, ber.TypePrimitive, 4, nil, "Options")
	opts.Data.Write([]byte{0x00, 0xC0})
	pdu.AppendChild(opts)

	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 5, maxMessageSize, "PreferredMessageSize"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 6, maxMessageSize, "MaximumRecordSize"))

	resp, err := c.roundTrip(ctx, pdu)
	if err != nil {
		return err
	}
	if resp.Tag != TagInitializeResponse {
		c.broken = true
		return fmt.Errorf("z3950: unexpected init response tag %d", resp.Tag)
	}

	// Result is [12] IMPLICIT BOOLEAN; some targets send a universal
	// BOOLEAN instead.
	for _, child := range resp.Children {
		if child.Tag != 12 && child.Tag != ber.TagBoolean {
			continue
		}
		if v, ok := child.Value.(bool); ok {
			if v {
				return nil
			}
			break
		}
		if b := child.Data.Bytes(); len(b) > 0 && b[0] != 0 {
			return nil
		}
	}
	c.broken = true
	return ErrInitRejected
}

// Search runs an RPN query against db and returns the hit count.
func (c *Client) Search(ctx context.Context, db string, query QueryNode) (int, error) {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, TagSearchRequest, nil, "SearchRequest")
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 13, 1, "SmallSetUpperBound"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 14, 1, "LargeSetLowerBound"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 15, 0, "MediumSetPresentNumber"))
	pdu.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 16, true, "ReplaceIndicator"))
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 17, resultSetName, "ResultSetName"))

	dbs := ber.Encode(ber.ClassContext, ber.TypeConstructed, 18, nil, "DatabaseNames")
	dbs.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 105, db, "DatabaseName"))
	pdu.AppendChild(dbs)

	q := ber.Encode(ber.ClassContext, ber.TypeConstructed, 21, nil, "Query")
	rpn := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "RPNQuery")
	attrSet := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagObjectIdentifier, nil, "AttributeSetId")
	attrSet.Data.Write(oidBytes[OIDBib1])
	rpn.AppendChild(attrSet)

	root := buildRPN(query)
	if root == nil {
		root = buildOperand(QueryClause{Attribute: UseAttributeAny, Term: " "})
	}
	rpn.AppendChild(root)
	q.AppendChild(rpn)
	pdu.AppendChild(q)

	resp, err := c.roundTrip(ctx, pdu)
	if err != nil {
		return 0, err
	}
	if resp.Tag != TagSearchResponse {
		c.broken = true
		return 0, fmt.Errorf("z3950: unexpected search response tag %d", resp.Tag)
	}
	for _, child := range resp.Children {
		if child.Tag == 23 {
			return int(decodeInt(child)), nil
		}
	}
	return 0, nil
}

// Present fetches count records starting at the 1-based position start.
// Records that fail to parse are skipped.
func (c *Client) Present(ctx context.Context, start, count int, syntaxOID string) ([]*Record, error) {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, TagPresentRequest, nil, "PresentRequest")
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 31, resultSetName, "ResultSetId"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 30, int64(start), "ResultSetStartPoint"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 29, int64(count), "NumberOfRecordsRequested"))

	oid, ok := oidBytes[syntaxOID]
	if !ok {
		oid = oidBytes[OIDMARC21]
	}
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 104, string(oid), "PreferredRecordSyntax"))

	resp, err := c.roundTrip(ctx, pdu)
	if err != nil {
		return nil, err
	}
	if resp.Tag != TagPresentResponse {
		c.broken = true
		return nil, fmt.Errorf("z3950: unexpected present response tag %d", resp.Tag)
	}

	var records []*Record
	for _, child := range resp.Children {
		if child.Tag != 28 {
			continue
		}
		for i, npr := range child.Children {
			octets := findOctetString(npr)
			if octets == nil {
				slog.Debug("z3950: record without octet data", "target", c.Addr(), "index", i)
				continue
			}
			rec, err := ParseMARC(octets)
			if err != nil {
				slog.Warn("z3950: skipping record", "target", c.Addr(), "index", i, "error", err)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func decodeInt(p *ber.Packet) int64 {
	if v, ok := p.Value.(int64); ok {
		return v
	}
	var val int64
	for _, b := range p.Data.Bytes() {
		val = (val << 8) | int64(b)
	}
	return val
}

func buildOperand(clause QueryClause) *ber.Packet {
	op := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Operand")
	apt := ber.Encode(ber.ClassContext, ber.TypeConstructed, 102, nil, "AttributesPlusTerm")

	attrs := ber.Encode(ber.ClassContext, ber.TypeConstructed, 44, nil, "Attributes")
	attr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AttributeElement")
	attr.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 120, 1, "AttributeType"))
	attr.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 121, int64(clause.Attribute), "AttributeValue"))
	attrs.AppendChild(attr)
	apt.AppendChild(attrs)
	apt.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 45, clause.Term, "Term"))

	op.AppendChild(apt)
	return op
}

func buildRPN(node QueryNode) *ber.Packet {
	switch n := node.(type) {
	case QueryClause:
		return buildOperand(n)
	case QueryComplex:
		left, right := buildRPN(n.Left), buildRPN(n.Right)
		if left == nil {
			return right
		}
		if right == nil {
			return left
		}
		cx := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "Complex")
		cx.AppendChild(left)
		cx.AppendChild(right)

		var opTag ber.Tag // and
		switch n.Operator {
		case "OR":
			opTag = 1
		case "AND-NOT":
			opTag = 2
		}
		op := ber.Encode(ber.ClassContext, ber.TypeConstructed, 46, nil, "Operator")
		op.AppendChild(ber.Encode(ber.ClassContext, ber.TypePrimitive, opTag, nil, "OperatorKind"))
		cx.AppendChild(op)
		return cx
	}
	return nil
}

// findOctetString digs the record bytes out of a NamePlusRecord, handling
// the EXTERNAL wrapper.
func findOctetString(p *ber.Packet) []byte {
	if p.ClassType == ber.ClassUniversal {
		switch p.Tag {
		case ber.TagOctetString:
			return p.Data.Bytes()
		case ber.TagExternal:
			for _, child := range p.Children {
				if child.ClassType != ber.ClassContext {
					continue
				}
				switch child.Tag {
				case 1: // octet-aligned
					return child.Data.Bytes()
				case 0: // single-ASN1-type
					return findOctetString(child)
				}
			}
		}
	}
	for _, child := range p.Children {
		if b := findOctetString(child); b != nil {
			return b
		}
	}
	return nil
}
