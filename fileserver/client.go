package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/crypto/blake2b"
)

// Client fetches files from a Server.
type Client struct {
	cfg *Config
}

// Result describes a completed transfer.
type Result struct {
	Size   uint64
	Digest [blake2b.Size256]byte // BLAKE2b-256 of the received content
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: &cfg}
}

// Transfer fetches remotePath from the server at addr and stores it at savePath.
// savePath must not exist. If the transfer fails after savePath has been created,
// the partial file is removed before Transfer returns.
func (c *Client) Transfer(ctx context.Context, addr, remotePath, savePath string) (*Result, error) {
	if _, err := os.Lstat(savePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, savePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := checkPathLength(remotePath); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer conn.Close()

	// Unblock pending I/O when ctx is canceled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	ts := newTransferSession(withDeadlines(conn, c.cfg), make([]byte, c.cfg.ChunkSize))
	ts.path = savePath
	if err := c.run(ts, remotePath); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return nil, err
	}
	return &Result{Size: ts.moved, Digest: ts.sum()}, nil
}

func (c *Client) run(ts *transferSession, remotePath string) (err error) {
	if err = writeRequest(ts.conn, remotePath); err != nil {
		return err
	}
	if ts.declared, err = readHeader(ts.conn); err != nil {
		return err
	}

	// O_EXCL: never clobber a file that appeared after the initial check.
	file, err := os.OpenFile(ts.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, ts.path)
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIO, cerr)
		}
		if err != nil {
			log.Warn("Error occurred, removing saved file", "path", ts.path, "err", err)
			if rerr := os.Remove(ts.path); rerr != nil {
				log.Error("Could not remove partial file", "path", ts.path, "err", rerr)
			}
		}
	}()

	if err = ts.receive(file); err != nil {
		return err
	}
	return ts.verify()
}
