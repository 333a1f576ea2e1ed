package sps30

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// SHDLC framing for the SPS30's UART interface: frames are delimited by
// 0x7E, the delimiter and control bytes inside a frame are escaped with
// 0x7D and an XOR 0x20, and the frame carries an additive-complement
// checksum. The response (MISO) frame additionally carries a device state
// byte that reports execution errors.

const (
	frameDelimiter byte = 0x7E
	escapeByte     byte = 0x7D
	escapeXOR      byte = 0x20
)

var (
	ErrFrameTooShort = errors.New("sps30: SHDLC frame too short")
	ErrChecksum      = errors.New("sps30: SHDLC checksum mismatch")
)

// DeviceError is a nonzero state byte in a MISO frame.
type DeviceError byte

func (e DeviceError) Error() string {
	return fmt.Sprintf("sps30: device reported error state 0x%02X", byte(e))
}

func needsEscape(b byte) bool {
	return b == frameDelimiter || b == escapeByte || b == 0x11 || b == 0x13
}

func checksum(content []byte) byte {
	var sum byte
	for _, b := range content {
		sum += b
	}
	return ^sum
}

// encodeFrame builds a stuffed MOSI frame: addr, cmd, length, data, checksum.
func encodeFrame(addr, cmd byte, data []byte) []byte {
	content := make([]byte, 0, 4+len(data))
	content = append(content, addr, cmd, byte(len(data)))
	content = append(content, data...)
	content = append(content, checksum(content))

	frame := make([]byte, 0, len(content)+2)
	frame = append(frame, frameDelimiter)
	for _, b := range content {
		if needsEscape(b) {
			frame = append(frame, escapeByte, b^escapeXOR)
		} else {
			frame = append(frame, b)
		}
	}
	return append(frame, frameDelimiter)
}

// decodeFrame unstuffs a MISO frame body (the bytes between delimiters),
// verifies the checksum and state byte, and returns the payload.
func decodeFrame(body []byte) ([]byte, error) {
	content := make([]byte, 0, len(body))
	escaped := false
	for _, b := range body {
		if escaped {
			content = append(content, b^escapeXOR)
			escaped = false
			continue
		}
		if b == escapeByte {
			escaped = true
			continue
		}
		content = append(content, b)
	}

	// addr, cmd, state, length, data..., checksum
	if len(content) < 5 {
		return nil, ErrFrameTooShort
	}
	chk := content[len(content)-1]
	content = content[:len(content)-1]
	if checksum(content) != chk {
		return nil, ErrChecksum
	}

	state := content[2]
	length := int(content[3])
	data := content[4:]
	if length != len(data) {
		return nil, fmt.Errorf("sps30: SHDLC length byte %d does not match %d payload bytes", length, len(data))
	}
	if state&0x7F != 0 {
		return nil, DeviceError(state & 0x7F)
	}
	return data, nil
}

// Transport executes SHDLC commands over a serial byte stream.
type Transport struct {
	w    io.Writer
	r    *bufio.Reader
	addr byte
}

// NewTransport wraps a serial connection. The SPS30 always answers on
// bus address 0.
func NewTransport(rw io.ReadWriter) *Transport {
	return &Transport{w: rw, r: bufio.NewReader(rw), addr: 0}
}

// Execute sends one command and returns the response payload.
func (t *Transport) Execute(cmd byte, data []byte) ([]byte, error) {
	if _, err := t.w.Write(encodeFrame(t.addr, cmd, data)); err != nil {
		return nil, fmt.Errorf("sps30: write frame: %w", err)
	}
	body, err := t.readFrameBody()
	if err != nil {
		return nil, err
	}
	return decodeFrame(body)
}

// readFrameBody consumes bytes until it has one complete delimited frame.
func (t *Transport) readFrameBody() ([]byte, error) {
	// Skip to the opening delimiter.
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("sps30: read frame start: %w", err)
		}
		if b == frameDelimiter {
			break
		}
	}
	var body []byte
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("sps30: read frame: %w", err)
		}
		if b == frameDelimiter {
			if len(body) == 0 {
				// Back-to-back delimiters between frames.
				continue
			}
			return body, nil
		}
		body = append(body, b)
	}
}
