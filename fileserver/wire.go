package fileserver

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Wire format, one request and one response per connection:
//
//	client -> server:  u16 LE path length, path bytes
//	server -> client:  u64 LE file length, file bytes
//
// There is no error frame. A rejected request is signaled by closing the
// connection before the header is written.

const (
	requestPrefixSize = 2
	headerSize        = 8

	// MaxPathLength is the longest path that fits in a request.
	MaxPathLength = math.MaxUint16
)

// checkPathLength reports whether path fits in a request.
func checkPathLength(path string) error {
	if len(path) > MaxPathLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPathTooLong, len(path), MaxPathLength)
	}
	return nil
}

func encodeRequest(path string) ([]byte, error) {
	if err := checkPathLength(path); err != nil {
		return nil, err
	}
	msg := make([]byte, requestPrefixSize+len(path))
	binary.LittleEndian.PutUint16(msg, uint16(len(path)))
	copy(msg[requestPrefixSize:], path)
	return msg, nil
}

func writeRequest(w io.Writer, path string) error {
	msg, err := encodeRequest(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("%w: sending request: %w", ErrIO, err)
	}
	return nil
}

func readRequest(r io.Reader) (string, error) {
	var prefix [requestPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", truncated("request", err)
	}
	path := make([]byte, binary.LittleEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, path); err != nil {
		return "", truncated("request", err)
	}
	return string(path), nil
}

func writeHeader(w io.Writer, size uint64) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:], size)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: sending header: %w", ErrIO, err)
	}
	return nil
}

func readHeader(r io.Reader) (uint64, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, truncated("response header", err)
	}
	return binary.LittleEndian.Uint64(hdr[:]), nil
}

// truncated classifies a failed fixed-size read. Running out of input is a framing
// problem; anything else is an I/O failure.
func truncated(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: truncated %s", ErrProtocol, what)
	}
	return fmt.Errorf("%w: reading %s: %w", ErrIO, what, err)
}
