// Package wire defines the newline-delimited JSON-RPC 2.0 messages spoken
// between the walk client and a simulator over TCP.
package wire

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Method names
const (
	MethodHello         = "hello"
	MethodStart         = "start"
	MethodStop          = "stop"
	MethodStep          = "step"
	MethodBye           = "bye"
	MethodReadPos       = "motor.readPos"
	MethodReadTorque    = "motor.readTorque"
	MethodWritePos      = "motor.writePos"
	MethodReadForce     = "force.read"
	MethodAccelerometer = "accelerometer.read"
	MethodTracker       = "tracker.read"
)

// Error codes. The -32xxx range below -32099 follows JSON-RPC 2.0; the
// application codes sit in the server-error band.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeIndexRange     = -32001
	CodeNotRunning     = -32002
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      uint64          `json:"id"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type IndexParams struct {
	Index int `json:"index"`
}

type WriteParams struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

type MotorInfo struct {
	Name      string  `json:"name"`
	MinPos    float64 `json:"minPos"`
	MaxPos    float64 `json:"maxPos"`
	TorqueMax float64 `json:"torqueMax"`
}

type SensorInfo struct {
	Name string `json:"name"`
}

// Hello is the enumeration returned on connect.
type Hello struct {
	Name         string       `json:"name"`
	Motors       []MotorInfo  `json:"motors"`
	ForceSensors []SensorInfo `json:"forceSensors"`
}

type ForceReading struct {
	Force  float64 `json:"force"`
	Torque float64 `json:"torque"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewRequest marshals params (which may be nil) into a request.
func NewRequest(id uint64, method string, params interface{}) (*Request, error) {
	req := &Request{JSONRPC: Version, Method: method, ID: id}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		req.Params = raw
	}
	return req, nil
}

func NewResult(id uint64, result interface{}) (*Response, error) {
	resp := &Response{JSONRPC: Version, ID: id}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		resp.Result = raw
	}
	return resp, nil
}

func NewError(id uint64, code int, format string, args ...interface{}) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: fmt.Sprintf(format, args...)},
		ID:      id,
	}
}
