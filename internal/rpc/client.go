package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

const defaultDialTimeout = 2 * time.Second

// Client is a short-lived connection to one daemon's Unix socket. A
// Client is not meant to be kept open across many calls; callers
// typically TryConnect, Call once or a handful of times, then close.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// TryConnect dials the socket with the default timeout.
func TryConnect(socketPath string) (*Client, error) {
	return TryConnectWithTimeout(socketPath, defaultDialTimeout)
}

// TryConnectWithTimeout dials the socket, failing fast if nothing is
// listening — the caller is expected to fall back to spawning a
// daemon or running in in-process mode on error.
func TryConnectWithTimeout(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "connect to daemon socket", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request line and waits for the matching response
// line. args is marshaled as-is into Request.Args; pass nil for
// operations that take none.
func (c *Client) Call(ctx context.Context, operation string, args any, version string) (*Response, error) {
	var raw json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, centyerr.Wrap(centyerr.JSONError, "encode request args", err)
		}
		raw = encoded
	}
	req := Request{Operation: operation, Args: raw, ClientVersion: version}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "encode request", err)
	}
	line = append(line, '\n')

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(line); err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "write request", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "flush request", err)
	}

	respLine, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "read response", err)
	}
	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode response", err)
	}
	return &resp, nil
}

// CallInto is Call plus decoding Response.Data into out when the call
// succeeds; it returns the structured error when Success is false.
func CallInto(ctx context.Context, c *Client, operation string, args any, version string, out any) error {
	resp, err := c.Call(ctx, operation, args, version)
	if err != nil {
		return err
	}
	if !resp.Success {
		return responseError(resp)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return centyerr.Wrap(centyerr.JSONError, "decode response data", err)
	}
	return nil
}

func responseError(resp *Response) error {
	if len(resp.Messages) == 0 {
		return centyerr.New(centyerr.IOError, "request failed")
	}
	m := resp.Messages[0]
	return (&centyerr.Error{Code: centyerr.Code(m.Code), Message: m.Message, Tip: m.Tip})
}

// Ping is a convenience wrapper used by daemon discovery to confirm a
// socket is live and speaking the expected protocol.
func Ping(ctx context.Context, socketPath string) (*PingResponse, error) {
	c, err := TryConnectWithTimeout(socketPath, defaultDialTimeout)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var out PingResponse
	if err := CallInto(ctx, c, OpPing, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ErrDaemonUnreachable is returned by higher-level helpers when a
// socket exists but nothing answers; kept distinct from a plain dial
// error so callers can decide whether to clean up a stale socket file.
var ErrDaemonUnreachable = fmt.Errorf("daemon unreachable")
