package http1

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/dreamans/evtcp"
)

// fakeConn is an evtcp.Connection over an in-memory input buffer.
type fakeConn struct {
	in     []byte
	out    bytes.Buffer
	closed bool
}

func (c *fakeConn) ID() uint64                     { return 1 }
func (c *fakeConn) Attribute() evtcp.Attribute     { return evtcp.Attribute{} }
func (c *fakeConn) LocalAddr() net.Addr            { return nil }
func (c *fakeConn) RemoteAddr() net.Addr           { return nil }
func (c *fakeConn) Status() evtcp.Status           { return evtcp.StatusConnected }
func (c *fakeConn) Context() context.Context       { return context.Background() }
func (c *fakeConn) SetContext(ctx context.Context) {}
func (c *fakeConn) Receive() []byte                { return append([]byte(nil), c.in...) }
func (c *fakeConn) Buffered() int                  { return len(c.in) }
func (c *fakeConn) Pause() error                   { return nil }
func (c *fakeConn) Resume() error                  { return nil }

func (c *fakeConn) Peek(n int) []byte {
	if n > len(c.in) {
		n = len(c.in)
	}
	return append([]byte(nil), c.in[:n]...)
}

func (c *fakeConn) Send(b []byte) error {
	c.out.Write(b)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestFramerCheck(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		want   int
		status string
	}{
		{
			name:  "get frames at header end",
			input: "GET / HTTP/1.1\r\nHost: a\r\n\r\n",
			want:  len("GET / HTTP/1.1\r\nHost: a\r\n\r\n"),
		},
		{
			name:  "head with trailing bytes",
			input: "HEAD /x HTTP/1.1\r\n\r\nGET",
			want:  len("HEAD /x HTTP/1.1\r\n\r\n"),
		},
		{
			name:  "post adds content length",
			input: "POST / HTTP/1.1\r\ncontent-length: 5\r\n\r\nhello",
			want:  len("POST / HTTP/1.1\r\ncontent-length: 5\r\n\r\n") + 5,
		},
		{
			name:  "content length is case insensitive",
			input: "PUT / HTTP/1.1\r\nCONTENT-LENGTH:3\r\n\r\nab",
			want:  len("PUT / HTTP/1.1\r\nCONTENT-LENGTH:3\r\n\r\n") + 3,
		},
		{
			name:  "incomplete header waits",
			input: "GET / HTTP/1.1\r\nHost: a\r\n",
			want:  0,
		},
		{
			name:   "post without content length",
			input:  "POST / HTTP/1.1\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "non numeric content length",
			input:  "PATCH / HTTP/1.1\r\nContent-Length: five\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "content length overflows the frame length",
			input:  "POST / HTTP/1.1\r\ncontent-length: 9223372036854775807\r\n\r\nx",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "content length out of range",
			input:  "POST / HTTP/1.1\r\ncontent-length: 99999999999999999999\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "signed content length",
			input:  "POST / HTTP/1.1\r\nContent-Length: +5\r\n\r\nhello",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "unknown method",
			input:  "BREW / HTCPCP/1.0\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "no request line",
			input:  "\r\n\r\n",
			status: "HTTP/1.1 400 Bad Request\r\n",
		},
		{
			name:   "oversized header",
			input:  "GET /" + strings.Repeat("a", DefaultMaxHeaderSize),
			status: "HTTP/1.1 413 Request Entity Too Large\r\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &fakeConn{in: []byte(tc.input)}
			got := NewFramer().Check(c)

			if got != tc.want {
				t.Errorf("Check() = %d, want %d", got, tc.want)
			}
			if tc.status == "" {
				if c.closed || c.out.Len() != 0 {
					t.Errorf("valid input rejected: closed=%v out=%q", c.closed, c.out.String())
				}
				return
			}
			if !c.closed {
				t.Errorf("connection left open")
			}
			if !strings.HasPrefix(c.out.String(), tc.status) {
				t.Errorf("response = %q, want prefix %q", c.out.String(), tc.status)
			}
		})
	}
}

func TestFramerCustomHeaderCap(t *testing.T) {
	f := &Framer{MaxHeaderSize: 8}

	c := &fakeConn{in: []byte("GET / H")}
	if got := f.Check(c); got != 0 || c.closed {
		t.Fatalf("below cap: Check() = %d closed=%v", got, c.closed)
	}
	c = &fakeConn{in: []byte("GET / HT")}
	f.Check(c)
	if !c.closed {
		t.Errorf("at cap: connection left open")
	}
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte("POST /submit HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Method != "POST" || req.URI != "/submit" || req.Proto != "HTTP/1.1" {
		t.Errorf("request line = %s %s %s", req.Method, req.URI, req.Proto)
	}
	if req.Header["host"] != "a" || req.Header["content-length"] != "5" {
		t.Errorf("header = %v", req.Header)
	}
	if string(req.Body) != "hello" {
		t.Errorf("body = %q", req.Body)
	}

	if _, err := ParseRequest([]byte("GET /\r\n\r\n")); err != ErrMalformedRequest {
		t.Errorf("short request line: err = %v", err)
	}
}

func TestRender(t *testing.T) {
	b := string(Render(StatusOK, map[string]string{"X-A": "1"}, []byte("ok")))

	if !strings.HasPrefix(b, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line: %q", b)
	}
	if !strings.Contains(b, "\r\nContent-Length: 2\r\n") || !strings.Contains(b, "\r\nX-A: 1\r\n") {
		t.Errorf("headers: %q", b)
	}
	if !strings.HasSuffix(b, "\r\n\r\nok") {
		t.Errorf("body: %q", b)
	}
}
