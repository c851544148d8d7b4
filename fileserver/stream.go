package fileserver

import (
	"fmt"
	"hash"
	"io"
	"net"

	"golang.org/x/crypto/blake2b"
)

// DefaultChunkSize is the streamer buffer size used when Config.ChunkSize is unset.
const DefaultChunkSize = 10 * 1024 * 1024

// copyChunks moves data from src to dst through buf until src reports end of
// stream. Every read is followed by a write of exactly the bytes that were read;
// a read is never assumed to fill buf. onChunk, if set, sees every chunk after it
// has been written.
func copyChunks(dst io.Writer, src io.Reader, buf []byte, onChunk func([]byte)) (int64, error) {
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			if werr == nil && wn != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return total, fmt.Errorf("%w: write: %w", ErrIO, werr)
			}
			total += int64(n)
			if onChunk != nil {
				onChunk(buf[:n])
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("%w: read: %w", ErrIO, rerr)
		}
	}
}

// transferSession is the state of one file transfer on one connection.
type transferSession struct {
	conn     net.Conn
	path     string // resolved source (server) or destination (client) path
	declared uint64 // length from the response header
	moved    uint64
	buf      []byte
	digest   hash.Hash
}

func newTransferSession(conn net.Conn, buf []byte) *transferSession {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	return &transferSession{conn: conn, buf: buf, digest: h}
}

func (ts *transferSession) count(chunk []byte) {
	ts.moved += uint64(len(chunk))
	ts.digest.Write(chunk)
}

// send streams file content to the connection until the file is exhausted.
func (ts *transferSession) send(file io.Reader) error {
	_, err := copyChunks(ts.conn, file, ts.buf, ts.count)
	return err
}

// receive streams from the connection into file until the peer closes.
func (ts *transferSession) receive(file io.Writer) error {
	_, err := copyChunks(file, ts.conn, ts.buf, ts.count)
	return err
}

// verify checks the moved byte count against the declared length.
func (ts *transferSession) verify() error {
	if ts.moved != ts.declared {
		return fmt.Errorf("%w: got %d, expected %d", ErrTruncatedTransfer, ts.moved, ts.declared)
	}
	return nil
}

func (ts *transferSession) sum() (d [blake2b.Size256]byte) {
	copy(d[:], ts.digest.Sum(nil))
	return d
}
