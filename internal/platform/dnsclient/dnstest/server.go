// Package dnstest levanta un servidor DNS autoritativo en loopback para tests.
package dnstest

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/miekg/dns"
)

// Server responde con los registros cargados; lo demás es NXDOMAIN.
type Server struct {
	Addr string

	srv     *dns.Server
	mu      sync.RWMutex
	records map[string][]dns.RR
	rcode   map[string]int
	queries atomic.Int32
}

// NewServer arranca un servidor UDP. Los registros van en formato zona:
// "example.com. 300 IN A 192.0.2.10".
func NewServer(records ...string) (*Server, error) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		Addr:    pc.LocalAddr().String(),
		records: make(map[string][]dns.RR),
		rcode:   make(map[string]int),
	}
	for _, r := range records {
		if err := s.Add(r); err != nil {
			pc.Close()
			return nil, err
		}
	}

	started := make(chan struct{})
	s.srv = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.handle),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = s.srv.ActivateAndServe() }()
	<-started
	return s, nil
}

// Add carga un registro más.
func (s *Server) Add(record string) error {
	rr, err := dns.NewRR(record)
	if err != nil {
		return err
	}
	key := key(rr.Header().Name, rr.Header().Rrtype)
	s.mu.Lock()
	s.records[key] = append(s.records[key], rr)
	s.mu.Unlock()
	return nil
}

// Fail hace que las consultas a name devuelvan rcode.
func (s *Server) Fail(name string, rcode int) {
	s.mu.Lock()
	s.rcode[dns.Fqdn(strings.ToLower(name))] = rcode
	s.mu.Unlock()
}

// Queries devuelve cuántas consultas ha recibido.
func (s *Server) Queries() int { return int(s.queries.Load()) }

func (s *Server) Close() error {
	return s.srv.Shutdown()
}

func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	s.queries.Add(1)
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range req.Question {
		name := strings.ToLower(q.Name)
		if rc, ok := s.rcode[name]; ok {
			m.Rcode = rc
			break
		}
		rrs, ok := s.records[key(name, q.Qtype)]
		if !ok && !s.known(name) {
			m.Rcode = dns.RcodeNameError
			continue
		}
		m.Answer = append(m.Answer, rrs...)
	}
	_ = w.WriteMsg(m)
}

// known indica si existe algún registro para name (NODATA frente a NXDOMAIN).
func (s *Server) known(name string) bool {
	for k := range s.records {
		if strings.HasPrefix(k, name+"|") {
			return true
		}
	}
	return false
}

func key(name string, qtype uint16) string {
	return strings.ToLower(dns.Fqdn(name)) + "|" + dns.TypeToString[qtype]
}
