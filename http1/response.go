package http1

import (
	"bytes"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const (
	StatusOK                    = http.StatusOK
	StatusBadRequest            = http.StatusBadRequest
	StatusNotFound              = http.StatusNotFound
	StatusRequestEntityTooLarge = http.StatusRequestEntityTooLarge
)

var ErrMalformedRequest = errors.New("http1: malformed request")

// Request is the parsed view of one framed request.
type Request struct {
	Method string
	URI    string
	Proto  string
	Header map[string]string
	Body   []byte
}

// ParseRequest splits a frame produced by Framer into its parts. Header
// names are lower-cased.
func ParseRequest(frame []byte) (*Request, error) {
	crlf := bytes.Index(frame, headerTerminator)
	if crlf == -1 {
		return nil, ErrMalformedRequest
	}
	header := frame[:crlf]

	line := header
	if i := bytes.Index(header, []byte("\r\n")); i != -1 {
		line = header[:i]
	}
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return nil, ErrMalformedRequest
	}

	return &Request{
		Method: string(parts[0]),
		URI:    string(parts[1]),
		Proto:  string(parts[2]),
		Header: parseHeader(header),
		Body:   frame[crlf+len(headerTerminator):],
	}, nil
}

// Render builds a complete HTTP/1.1 response. Content-Length and Date are
// always set; other headers are written in name order.
func Render(status int, headers map[string]string, body []byte) []byte {
	fields := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		fields[k] = v
	}
	fields["Content-Length"] = strconv.Itoa(len(body))
	fields["Date"] = time.Now().UTC().Format(http.TimeFormat)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b []byte
	b = append(b, "HTTP/1.1 "...)
	b = append(b, strconv.Itoa(status)...)
	b = append(b, ' ')
	b = append(b, http.StatusText(status)...)
	b = append(b, "\r\n"...)

	for _, k := range keys {
		b = append(b, k...)
		b = append(b, ": "...)
		b = append(b, fields[k]...)
		b = append(b, "\r\n"...)
	}

	b = append(b, "\r\n"...)
	b = append(b, body...)
	return b
}
