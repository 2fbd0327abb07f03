// Package simclient is a blocking client for a simulator speaking the
// protocol in package wire. A Client owns one TCP connection and is not
// safe for concurrent use.
package simclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/san-kum/hexwalk/internal/logging"
	"github.com/san-kum/hexwalk/internal/wire"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Second

type Options struct {
	// Timeout bounds each call when ctx carries no earlier deadline.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

type Client struct {
	addr    string
	conn    net.Conn
	enc     *json.Encoder
	dec     *json.Decoder
	nextID  uint64
	timeout time.Duration
	log     logrus.FieldLogger
	hello   wire.Hello
	broken  error
	closed  bool

	// abandoned counts requests whose responses are still owed after a
	// cancelled call.
	abandoned int
}

// Dial connects to host:port and fetches the actuator and sensor lists.
func Dial(ctx context.Context, host string, port int, opts Options) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "dial", Err: errors.Wrapf(err, "dial %s", addr)}
	}

	c := newClient(conn, addr, opts)
	if err := c.call(ctx, wire.MethodHello, nil, &c.hello); err != nil {
		conn.Close()
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"addr":         addr,
		"server":       c.hello.Name,
		"motors":       len(c.hello.Motors),
		"forceSensors": len(c.hello.ForceSensors),
	}).Info("connected to simulator")
	return c, nil
}

func newClient(conn net.Conn, addr string, opts Options) *Client {
	return &Client{
		addr:    addr,
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(conn),
		timeout: opts.Timeout,
		log:     opts.Logger.WithField("addr", addr),
	}
}

func (c *Client) Addr() string       { return c.addr }
func (c *Client) ServerName() string { return c.hello.Name }

// Close says goodbye to the simulator and releases the connection. It is
// safe to call more than once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	if c.broken == nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := c.call(ctx, wire.MethodBye, nil, nil); err != nil {
			c.log.WithError(err).Debug("goodbye failed")
		}
		cancel()
	}
	c.closed = true
	c.log.Info("disconnected from simulator")
	if err := c.conn.Close(); err != nil {
		return &Error{Kind: KindConnection, Op: "close", Err: err}
	}
	return nil
}

func (c *Client) Start(ctx context.Context) error {
	return c.call(ctx, wire.MethodStart, nil, nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.call(ctx, wire.MethodStop, nil, nil)
}

// NextStep advances the simulator by one step and waits for it to finish.
func (c *Client) NextStep(ctx context.Context) error {
	return c.call(ctx, wire.MethodStep, nil, nil)
}

func (c *Client) CountMotors() int       { return len(c.hello.Motors) }
func (c *Client) CountForceSensors() int { return len(c.hello.ForceSensors) }

func (c *Client) Motor(i int) (wire.MotorInfo, error) {
	if i < 0 || i >= len(c.hello.Motors) {
		return wire.MotorInfo{}, indexError("motor", i, len(c.hello.Motors))
	}
	return c.hello.Motors[i], nil
}

func (c *Client) ForceSensor(i int) (wire.SensorInfo, error) {
	if i < 0 || i >= len(c.hello.ForceSensors) {
		return wire.SensorInfo{}, indexError("force sensor", i, len(c.hello.ForceSensors))
	}
	return c.hello.ForceSensors[i], nil
}

func (c *Client) ReadPos(ctx context.Context, motor int) (float64, error) {
	if _, err := c.Motor(motor); err != nil {
		return 0, err
	}
	var v float64
	err := c.call(ctx, wire.MethodReadPos, wire.IndexParams{Index: motor}, &v)
	return v, err
}

func (c *Client) ReadTorque(ctx context.Context, motor int) (float64, error) {
	if _, err := c.Motor(motor); err != nil {
		return 0, err
	}
	var v float64
	err := c.call(ctx, wire.MethodReadTorque, wire.IndexParams{Index: motor}, &v)
	return v, err
}

func (c *Client) WritePos(ctx context.Context, motor int, pos float64) error {
	if _, err := c.Motor(motor); err != nil {
		return err
	}
	return c.call(ctx, wire.MethodWritePos, wire.WriteParams{Index: motor, Value: pos}, nil)
}

func (c *Client) ReadForce(ctx context.Context, sensor int) (wire.ForceReading, error) {
	var r wire.ForceReading
	if _, err := c.ForceSensor(sensor); err != nil {
		return r, err
	}
	err := c.call(ctx, wire.MethodReadForce, wire.IndexParams{Index: sensor}, &r)
	return r, err
}

func (c *Client) ReadAccelerometer(ctx context.Context) (wire.Vec3, error) {
	var v wire.Vec3
	err := c.call(ctx, wire.MethodAccelerometer, nil, &v)
	return v, err
}

func (c *Client) ReadTracker(ctx context.Context) (wire.Vec3, error) {
	var v wire.Vec3
	err := c.call(ctx, wire.MethodTracker, nil, &v)
	return v, err
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if c.closed {
		return &Error{Kind: KindConnection, Op: method, Err: errors.New("client closed")}
	}
	if c.broken != nil {
		return &Error{Kind: KindConnection, Op: method, Err: errors.Wrap(c.broken, "connection unusable")}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindCancelled, Op: method, Err: err}
	}

	c.nextID++
	req, err := wire.NewRequest(c.nextID, method, params)
	if err != nil {
		return &Error{Kind: KindProtocol, Op: method, Err: errors.Wrap(err, "encode params")}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return c.fail(method, KindConnection, errors.Wrap(err, "set deadline"))
	}

	// Cancelling ctx expires the deadline so a blocked read or write
	// returns at once. The callback must finish before the next call
	// sets its own deadline.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	if err := c.enc.Encode(req); err != nil {
		// a partial write leaves the peer mid-frame
		return c.fail(method, KindConnection, errors.Wrap(err, "send request"))
	}

	resp, err := c.receive(req.ID)
	if err != nil {
		if ctx.Err() != nil && isTimeout(err) {
			return c.abandon(ctx, method, err)
		}
		return c.fail(method, classifyDecode(err), errors.Wrap(err, "read response"))
	}
	if resp.Error != nil {
		kind := KindRemote
		if resp.Error.Code == wire.CodeIndexRange {
			kind = KindIndex
		}
		return &Error{Kind: kind, Op: method, Code: resp.Error.Code, Err: resp.Error}
	}

	if result != nil {
		if len(resp.Result) == 0 {
			return &Error{Kind: KindProtocol, Op: method, Err: errors.New("empty result")}
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return &Error{Kind: KindProtocol, Op: method, Err: errors.Wrap(err, "decode result")}
		}
	}
	return nil
}

// receive reads frames until the response to id arrives. Late answers to
// abandoned calls are skipped; the simulator answers in order, so once id
// is answered nothing older is still in flight.
func (c *Client) receive(id uint64) (*wire.Response, error) {
	for {
		var resp wire.Response
		if err := c.dec.Decode(&resp); err != nil {
			return nil, err
		}
		switch {
		case resp.ID == id:
			c.abandoned = 0
			return &resp, nil
		case c.abandoned > 0 && resp.ID < id:
			c.abandoned--
			c.log.WithField("id", resp.ID).Debug("skipping late response")
		default:
			return nil, errors.Errorf("response id %d, want %d", resp.ID, id)
		}
	}
}

// abandon gives up on a call whose request went out but whose response was
// interrupted by ctx. The stream stays usable: the decoder is rebuilt over
// whatever part of the frame it had already buffered, and receive skips
// the late answer.
func (c *Client) abandon(ctx context.Context, method string, err error) error {
	c.abandoned++
	c.dec = json.NewDecoder(io.MultiReader(c.dec.Buffered(), c.conn))
	c.log.WithError(err).WithField("method", method).Debug("call abandoned")
	return &Error{Kind: KindCancelled, Op: method, Err: errors.Wrap(ctx.Err(), "call abandoned")}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// fail marks the stream unusable; a lost or desynchronised stream cannot
// carry further requests.
func (c *Client) fail(method string, kind Kind, err error) error {
	c.broken = err
	c.log.WithError(err).WithField("method", method).Warn("simulator call failed")
	return &Error{Kind: kind, Op: method, Err: err}
}

func classifyDecode(err error) Kind {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn), errors.As(err, &typ):
		return KindProtocol
	case err == io.EOF, err == io.ErrUnexpectedEOF:
		return KindConnection
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindConnection
	}
	return KindProtocol
}

func indexError(what string, i, n int) error {
	return &Error{
		Kind: KindIndex,
		Op:   what,
		Code: wire.CodeIndexRange,
		Err:  errors.Errorf("%s index %d out of range [0,%d)", what, i, n),
	}
}
