// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpctypes

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Conn is a single connection to a control endpoint (unix socket or
// TCP), capable of carrying several sequential calls. Grounded on
// trellis's pkg/client.Client, adapted from one-shot HTTP requests to
// a long-lived streaming JSON-RPC connection: the wire framing here is
// whatever get_next_call's serde_json::from_reader used, a stream of
// JSON values with no length prefix, so a *json.Decoder fed straight
// off the net.Conn is both the encoder and the reader of responses.
type Conn struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
	next int
}

// DialUnix connects to a control socket at path.
func DialUnix(path string, timeout time.Duration) (*Conn, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("rpctypes: dial unix %s: %w", path, err)
	}
	return newConn(conn), nil
}

// DialTCP connects to a control endpoint over TCP, e.g. "127.0.0.1:8080".
func DialTCP(addr string, timeout time.Duration) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("rpctypes: dial tcp %s: %w", addr, err)
	}
	return newConn(conn), nil
}

func newConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// Call sends one JSON-RPC request and waits for its matching response.
// params may be nil, a single JSON-able value, or a slice.
func (c *Conn) Call(method string, params interface{}) (*Response, error) {
	c.next++
	id := c.next

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("rpctypes: marshal params: %w", err)
		}
		raw = data
	}

	req := &Request{JSONRPC: JSONRPCVersion, Method: method, Params: raw, Id: id}
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("rpctypes: send request: %w", err)
	}

	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("rpctypes: read response: %w", err)
	}
	return &resp, nil
}
