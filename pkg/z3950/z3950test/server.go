// Package z3950test provides an in-process Z39.50 target for tests.
package z3950test

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Behavior selects how the target answers.
type Behavior int

const (
	Normal Behavior = iota
	// RejectInit answers InitializeRequest with result false.
	RejectInit
	// HangOnSearch reads SearchRequest and never answers.
	HangOnSearch
	// CloseOnSearch answers SearchRequest with a Close PDU.
	CloseOnSearch
)

// Server serves a fixed list of ISO 2709 records for every query.
type Server struct {
	Host string
	Port int

	listener net.Listener
	records  [][]byte
	behavior Behavior

	inits    atomic.Int32
	conns    atomic.Int32
	mu       sync.Mutex
	terms    []string
	closing  chan struct{}
	wg       sync.WaitGroup
	openConn map[net.Conn]struct{}
}

// NewServer starts a target on a random loopback port. It is shut down
// when the test ends.
func NewServer(t testing.TB, behavior Behavior, records ...[]byte) *Server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("z3950test: listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := &Server{
		Host:     host,
		Port:     port,
		listener: l,
		records:  records,
		behavior: behavior,
		closing:  make(chan struct{}),
		openConn: make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Inits is the number of InitializeRequests received.
func (s *Server) Inits() int { return int(s.inits.Load()) }

// Conns is the number of accepted connections.
func (s *Server) Conns() int { return int(s.conns.Load()) }

// Terms lists the search terms received, in order.
func (s *Server) Terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terms...)
}

func (s *Server) Close() {
	select {
	case <-s.closing:
		return
	default:
	}
	close(s.closing)
	s.listener.Close()
	s.mu.Lock()
	for c := range s.openConn {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.conns.Add(1)
		s.mu.Lock()
		s.openConn[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.openConn, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		pkt, err := ber.ReadPacket(conn)
		if err != nil {
			return
		}

		var resp *ber.Packet
		switch pkt.Tag {
		case 20:
			s.inits.Add(1)
			resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 21, nil, "InitializeResponse")
			resp.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 12, s.behavior != RejectInit, "Result"))
		case 22:
			s.mu.Lock()
			s.terms = append(s.terms, findTerm(pkt))
			s.mu.Unlock()
			switch s.behavior {
			case HangOnSearch:
				<-s.closing
				return
			case CloseOnSearch:
				resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 48, nil, "Close")
				resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 211, 2, "CloseReason"))
			default:
				resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 23, nil, "SearchResponse")
				resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 23, int64(len(s.records)), "ResultCount"))
				resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 24, 0, "NumberOfRecordsReturned"))
				resp.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 22, true, "SearchStatus"))
			}
		case 24:
			resp = s.present(pkt)
		case 48:
			return
		default:
			return
		}
		if _, err := conn.Write(resp.Bytes()); err != nil {
			return
		}
	}
}

func (s *Server) present(req *ber.Packet) *ber.Packet {
	start, count := 1, len(s.records)
	for _, child := range req.Children {
		switch child.Tag {
		case 30:
			start = int(intValue(child))
		case 29:
			count = int(intValue(child))
		}
	}

	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, 25, nil, "PresentResponse")
	records := ber.Encode(ber.ClassContext, ber.TypeConstructed, 28, nil, "ResponseRecords")
	for i := start - 1; i >= 0 && i < len(s.records) && i < start-1+count; i++ {
		npr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "NamePlusRecord")
		dbRecord := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "DatabaseRecord")
		ext := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagExternal, nil, "External")
		ext.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 1, string(s.records[i]), "OctetAligned"))
		dbRecord.AppendChild(ext)
		npr.AppendChild(dbRecord)
		records.AppendChild(npr)
	}
	resp.AppendChild(records)
	return resp
}

func intValue(p *ber.Packet) int64 {
	var v int64
	for _, b := range p.Data.Bytes() {
		v = v<<8 | int64(b)
	}
	return v
}

func findTerm(p *ber.Packet) string {
	if p.ClassType == ber.ClassContext && p.Tag == 45 && len(p.Children) == 0 {
		return p.Data.String()
	}
	for _, c := range p.Children {
		if t := findTerm(c); t != "" {
			return t
		}
	}
	return ""
}
