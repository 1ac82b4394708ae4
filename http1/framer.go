// Package http1 frames HTTP/1.x requests on an evtcp connection.
package http1

import (
	"bytes"
	"math"
	"strconv"

	"github.com/dreamans/evtcp"
)

const DefaultMaxHeaderSize = 16384

var headerTerminator = []byte("\r\n\r\n")

// Framer reports the length of the next request: the header for bodiless
// methods, header plus Content-Length for POST, PUT and PATCH. Oversized
// headers get 413, anything it cannot frame gets 400; both close the
// connection.
type Framer struct {
	// MaxHeaderSize caps the bytes buffered while looking for the end of
	// the header. Zero means DefaultMaxHeaderSize.
	MaxHeaderSize int
}

func NewFramer() *Framer {
	return &Framer{MaxHeaderSize: DefaultMaxHeaderSize}
}

func (f *Framer) Check(c evtcp.Connection) int {
	input := c.Receive()

	crlf := bytes.Index(input, headerTerminator)
	if crlf == -1 {
		if len(input) >= f.maxHeaderSize() {
			reject(c, StatusRequestEntityTooLarge)
		}
		return 0
	}
	headerEnd := crlf + len(headerTerminator)

	method := requestMethod(input)
	switch method {
	case "GET", "HEAD", "DELETE", "OPTIONS", "TRACE":
		return headerEnd
	case "POST", "PUT", "PATCH":
	default:
		reject(c, StatusBadRequest)
		return 0
	}

	length, ok := contentLength(input[:crlf])
	if !ok || length > math.MaxInt-headerEnd {
		reject(c, StatusBadRequest)
		return 0
	}
	return headerEnd + length
}

func (f *Framer) maxHeaderSize() int {
	if f.MaxHeaderSize <= 0 {
		return DefaultMaxHeaderSize
	}
	return f.MaxHeaderSize
}

func reject(c evtcp.Connection, status int) {
	_ = c.Send(Render(status, map[string]string{"Connection": "close"}, nil))
	_ = c.Close()
}

// requestMethod is the token before the first space, "" if there is none.
func requestMethod(b []byte) string {
	i := bytes.IndexByte(b, ' ')
	if i == -1 {
		return ""
	}
	return string(b[:i])
}

// contentLength finds a case-insensitive Content-Length field in header,
// which excludes the terminating blank line.
func contentLength(header []byte) (int, bool) {
	v, ok := parseHeader(header)["content-length"]
	if !ok {
		return 0, false
	}
	if v == "" {
		return 0, false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseHeader maps lower-cased field names to trimmed values. The request
// line and lines without a colon are skipped; the first occurrence wins.
func parseHeader(header []byte) map[string]string {
	lines := bytes.Split(header, []byte("\r\n"))
	fields := make(map[string]string, len(lines))
	for i := 1; i < len(lines); i++ {
		index := bytes.IndexByte(lines[i], ':')
		if index == -1 {
			continue
		}
		k := string(bytes.ToLower(bytes.TrimSpace(lines[i][:index])))
		if _, ok := fields[k]; ok {
			continue
		}
		fields[k] = string(bytes.TrimSpace(lines[i][index+1:]))
	}
	return fields
}
