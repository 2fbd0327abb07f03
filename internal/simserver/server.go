// Package simserver is a small in-process simulator that speaks the wire
// protocol. It stands in for the real simulator in tests and in the
// `serve` command.
package simserver

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/san-kum/hexwalk/internal/logging"
	"github.com/san-kum/hexwalk/internal/wire"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Name         string
	Legs         int
	ForceSensors int
	// Gain is the fraction of the remaining error a joint closes per step.
	Gain      float64
	Stiffness float64
	Limit     float64
	TorqueMax float64
	Logger    logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		Name:         "hexwalk-mock",
		Legs:         6,
		ForceSensors: 6,
		Gain:         0.5,
		Stiffness:    4.0,
		Limit:        1.57,
		TorqueMax:    2.5,
	}
}

// Stats is a snapshot of what the server has been asked to do.
type Stats struct {
	Steps       int
	Starts      int
	Stops       int
	Running     bool
	Writes      []int
	Connections int
	Goodbyes    int
}

type Server struct {
	log      logrus.FieldLogger
	listener net.Listener
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	world    *world
	conns    map[net.Conn]struct{}
	accepted int
	goodbyes int
}

func New(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Legs <= 0 {
		cfg.Legs = def.Legs
	}
	if cfg.ForceSensors < 0 {
		cfg.ForceSensors = 0
	}
	if cfg.Gain <= 0 || cfg.Gain > 1 {
		cfg.Gain = def.Gain
	}
	if cfg.Stiffness <= 0 {
		cfg.Stiffness = def.Stiffness
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.TorqueMax <= 0 {
		cfg.TorqueMax = def.TorqueMax
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Server{
		log:      cfg.Logger.WithField("component", "simserver"),
		stopChan: make(chan struct{}),
		world:    newWorld(cfg),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds addr (such as "127.0.0.1:0") without serving yet.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	s.listener = l
	s.log.WithField("addr", l.Addr().String()).Info("simulator listening")
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("simserver: Serve called before Listen")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			return errors.Wrap(err, "accept")
		}

		s.mu.Lock()
		select {
		case <-s.stopChan:
			s.mu.Unlock()
			conn.Close()
			return nil
		default:
		}
		s.conns[conn] = struct{}{}
		s.accepted++
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	log := s.log.WithField("client", conn.RemoteAddr().String())
	log.Debug("client connected")

	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)
	for {
		var req wire.Request
		if err := dec.Decode(&req); err != nil {
			if !isClosed(err) {
				log.WithError(err).Warn("failed to decode request")
				enc.Encode(wire.NewError(0, wire.CodeParseError, "parse error"))
			}
			return
		}

		resp := s.dispatch(&req)
		if err := enc.Encode(resp); err != nil {
			log.WithError(err).Warn("failed to write response")
			return
		}
		if req.Method == wire.MethodBye && resp.Error == nil {
			log.Debug("client said goodbye")
			return
		}
	}
}

func (s *Server) dispatch(req *wire.Request) *wire.Response {
	if req.JSONRPC != wire.Version {
		return wire.NewError(req.ID, wire.CodeInvalidRequest, "unsupported jsonrpc version %q", req.JSONRPC)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.world

	switch req.Method {
	case wire.MethodHello:
		return result(req.ID, w.hello())
	case wire.MethodStart:
		w.running = true
		w.starts++
		return result(req.ID, nil)
	case wire.MethodStop:
		w.running = false
		w.stops++
		return result(req.ID, nil)
	case wire.MethodStep:
		if !w.running {
			return wire.NewError(req.ID, wire.CodeNotRunning, "simulation not running")
		}
		w.step()
		return result(req.ID, nil)
	case wire.MethodBye:
		s.goodbyes++
		return result(req.ID, nil)
	case wire.MethodReadPos, wire.MethodReadTorque:
		var p wire.IndexParams
		if resp := decodeParams(req, &p); resp != nil {
			return resp
		}
		if p.Index < 0 || p.Index >= len(w.motors) {
			return wire.NewError(req.ID, wire.CodeIndexRange, "motor %d out of range", p.Index)
		}
		if req.Method == wire.MethodReadPos {
			return result(req.ID, w.motors[p.Index].pos)
		}
		return result(req.ID, w.motors[p.Index].torque)
	case wire.MethodWritePos:
		var p wire.WriteParams
		if resp := decodeParams(req, &p); resp != nil {
			return resp
		}
		if p.Index < 0 || p.Index >= len(w.motors) {
			return wire.NewError(req.ID, wire.CodeIndexRange, "motor %d out of range", p.Index)
		}
		w.write(p.Index, p.Value)
		return result(req.ID, nil)
	case wire.MethodReadForce:
		var p wire.IndexParams
		if resp := decodeParams(req, &p); resp != nil {
			return resp
		}
		if p.Index < 0 || p.Index >= len(w.force) {
			return wire.NewError(req.ID, wire.CodeIndexRange, "force sensor %d out of range", p.Index)
		}
		return result(req.ID, w.force[p.Index])
	case wire.MethodAccelerometer:
		return result(req.ID, w.accel)
	case wire.MethodTracker:
		return result(req.ID, w.tracker)
	}
	return wire.NewError(req.ID, wire.CodeMethodNotFound, "method %q not found", req.Method)
}

// Stats returns a copy of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Steps:       s.world.steps,
		Starts:      s.world.starts,
		Stops:       s.world.stops,
		Running:     s.world.running,
		Writes:      append([]int(nil), s.world.writes...),
		Connections: s.accepted,
		Goodbyes:    s.goodbyes,
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	select {
	case <-s.stopChan:
		return nil
	default:
		close(s.stopChan)
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func result(id uint64, v interface{}) *wire.Response {
	resp, err := wire.NewResult(id, v)
	if err != nil {
		return wire.NewError(id, wire.CodeInvalidParams, "encode result: %v", err)
	}
	return resp
}

func decodeParams(req *wire.Request, v interface{}) *wire.Response {
	if len(req.Params) == 0 {
		return wire.NewError(req.ID, wire.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return wire.NewError(req.ID, wire.CodeInvalidParams, "invalid params: %v", err)
	}
	return nil
}

func isClosed(err error) bool {
	if err == io.EOF || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
