// SPDX-License-Identifier: LGPL-2.1-only

// Package netconf implements the NETCONF-over-local-socket wire framing:
// each message is an XML document, either terminated by the legacy
// "]]>]]>" sentinel or framed with an RFC 6242-style chunk length prefix.
// It also wraps replies as <rpc-reply>; the XML Session does not decode
// any <rpc> operation into an internal/rpcengine request (see
// decodeRequest), while JSONSession does so for its JSON envelope.
package netconf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const eomSentinel = "]]>]]>"

// Mode selects which framing a connection uses.
type Mode int

const (
	ModeEOM Mode = iota
	ModeChunked
)

// ReadMessage reads one framed message from r according to mode.
func ReadMessage(r *bufio.Reader, mode Mode) ([]byte, error) {
	switch mode {
	case ModeChunked:
		return readChunked(r)
	default:
		return readEOM(r)
	}
}

func readEOM(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	sentinel := []byte(eomSentinel)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if buf.Len() > 0 && err == io.EOF {
				return nil, fmt.Errorf("truncated message: %w", err)
			}
			return nil, err
		}
		buf.WriteByte(b)
		if buf.Len() >= len(sentinel) && bytes.Equal(buf.Bytes()[buf.Len()-len(sentinel):], sentinel) {
			return buf.Bytes()[:buf.Len()-len(sentinel)], nil
		}
	}
}

// readChunked reads a sequence of "\n#<len>\n<len bytes>" chunks
// terminated by "\n##\n", per RFC 6242's chunked framing mechanism. The
// header is parsed byte-by-byte rather than via ReadString('\n'): the
// header's own leading byte is a bare '\n', so reading up to the next '\n'
// only ever returns that single byte and never the length that follows it.
func readChunked(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		n, end, err := readChunkHeader(r)
		if err != nil {
			return nil, err
		}
		if end {
			return buf.Bytes(), nil
		}
		if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
			return nil, fmt.Errorf("read chunk data: %w", err)
		}
	}
}

// readChunkHeader consumes one "\n#<len>\n" or "\n##\n" header from r,
// returning the chunk length, or end=true for the terminating header.
func readChunkHeader(r *bufio.Reader) (n int, end bool, err error) {
	if err := expectByte(r, '\n'); err != nil {
		return 0, false, err
	}
	if err := expectByte(r, '#'); err != nil {
		return 0, false, err
	}
	b, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	if b == '#' {
		if err := expectByte(r, '\n'); err != nil {
			return 0, false, err
		}
		return 0, true, nil
	}
	if b < '1' || b > '9' {
		return 0, false, fmt.Errorf("malformed chunk framing: bad length digit %q", b)
	}
	n = int(b - '0')
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, false, err
		}
		if b == '\n' {
			return n, false, nil
		}
		if b < '0' || b > '9' {
			return 0, false, fmt.Errorf("malformed chunk framing: bad length digit %q", b)
		}
		n = n*10 + int(b-'0')
	}
}

func expectByte(r *bufio.Reader, want byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != want {
		return fmt.Errorf("malformed chunk framing: expected %q, got %q", want, b)
	}
	return nil
}

// WriteMessage frames payload according to mode and writes it to w.
func WriteMessage(w io.Writer, mode Mode, payload []byte) error {
	switch mode {
	case ModeChunked:
		if _, err := fmt.Fprintf(w, "\n#%d\n", len(payload)); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprint(w, "\n##\n")
		return err
	default:
		if _, err := w.Write(payload); err != nil {
			return err
		}
		_, err := w.Write([]byte(eomSentinel))
		return err
	}
}
