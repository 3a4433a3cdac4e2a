package core

// streaming.go provides reader wrappers that clean up delimited text
// before it reaches the CSV parser:
//
//   - bomReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Reader replaces invalid UTF-8 bytes with '?'
//
// Use WrapForParsing to apply both in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WrapForParsing strips a BOM and sanitizes UTF-8 on the fly.
func WrapForParsing(r io.Reader) io.Reader {
	return newUTF8Reader(newBOMReader(r))
}

type bomReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{br: bufio.NewReader(r)}
}

func (r *bomReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// utf8Reader cleans the source in chunks and serves reads from the
// cleaned chunk. A multi-byte rune split across two source reads is held
// in pending until the next chunk completes it.
type utf8Reader struct {
	r       io.Reader
	raw     []byte
	out     []byte
	pending []byte
	err     error
}

const utf8ChunkSize = 32 * 1024

func newUTF8Reader(r io.Reader) *utf8Reader {
	return &utf8Reader{
		r:       r,
		raw:     make([]byte, utf8ChunkSize),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads the next source chunk behind any pending bytes and cleans it.
func (s *utf8Reader) fill() {
	n := copy(s.raw, s.pending)
	s.pending = s.pending[:0]
	m, err := s.r.Read(s.raw[n:])
	s.err = err
	s.out = s.raw[:s.clean(s.raw[:n+m], err != nil)]
}

// clean sanitizes data in place and returns the number of bytes to emit.
// When atEnd is false an incomplete trailing rune is moved to pending.
func (s *utf8Reader) clean(data []byte, atEnd bool) int {
	w := 0
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			data[w] = data[i]
			w++
			i++
			continue
		}
		if !atEnd && !utf8.FullRune(data[i:]) {
			s.pending = append(s.pending, data[i:]...)
			return w
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		w += copy(data[w:], data[i:i+size])
		i += size
	}
	return w
}
