package at

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// DefaultMaxLineLength is the longest partial line the Framer keeps while
// waiting for its terminator. The longest legitimate line is a downlink
// carrying 242 payload bytes as hex, which is well below this.
const DefaultMaxLineLength = 1024

// ErrLineTooLong is returned when the receive buffer grows past the maximum
// line length without a terminator. This typically indicates line noise,
// a wrong baud rate or a protocol framing error.
var ErrLineTooLong = errors.New("at: response line too long")

// Splitter is used for tokenizing RAK811 responses. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by CRLF. A lone CR or LF is part of the line.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Framer turns arbitrarily chunked input into complete lines. Bytes that do
// not yet end in a terminator stay buffered until a later Feed completes
// them, so the lines produced never depend on where the chunks were cut.
//
// A Framer is not safe for concurrent use; the modem Loop is its only writer.
type Framer struct {
	buf     []byte
	maxLine int
}

// NewFramer returns a Framer that discards a partial line once it exceeds
// maxLine bytes. A maxLine of zero or less selects DefaultMaxLineLength.
func NewFramer(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &Framer{maxLine: maxLine}
}

// Feed appends chunk to the receive buffer and returns every line completed
// by it, in order and without terminators. When the remaining partial line
// is longer than the limit it is dropped and ErrLineTooLong is returned
// together with the lines extracted before it.
func (f *Framer) Feed(chunk []byte) ([]string, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	f.buf = append(f.buf, chunk...)

	var lines []string
	consumed := 0
	for {
		advance, token, _ := Splitter(f.buf[consumed:], false)
		if advance == 0 {
			break
		}
		lines = append(lines, string(token))
		consumed += advance
	}
	n := copy(f.buf, f.buf[consumed:])
	f.buf = f.buf[:n]

	if len(f.buf) > f.maxLine {
		f.buf = f.buf[:0]
		return lines, ErrLineTooLong
	}
	return lines, nil
}

// Buffered returns the number of bytes waiting for a line terminator.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards any partial line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// ErrorCode reports whether line carries the error marker and returns the
// text following it, which should be the numeric vendor code.
func ErrorCode(line string) (string, bool) {
	i := strings.Index(line, ErrorMarker)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(line[i+len(ErrorMarker):]), true
}

// IsDownlink reports whether line is an unsolicited downlink notification.
func IsDownlink(line string) bool {
	return strings.Contains(line, DownlinkMarker)
}

// Classify identifies the nature of a line with respect to the expected
// success marker of the pending command. An empty expected marker means no
// command is pending. Error takes precedence over success, which takes
// precedence over a downlink; callers that need every aspect of a line must
// use ErrorCode and IsDownlink.
func Classify(line, expected string) ResponseType {
	if _, ok := ErrorCode(line); ok {
		return TypeError
	}
	if expected != "" && strings.Contains(line, expected) {
		return TypeExpected
	}
	if IsDownlink(line) {
		return TypeDownlink
	}
	return TypeIgnored
}
