package fileserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/semaphore"
)

const maxAcceptDelay = 1 * time.Second

var ErrServerClosed = errors.New("server closed")

// Config holds the settings shared by Server and Client.
type Config struct {
	ChunkSize    int           // Streamer buffer size, defaults to DefaultChunkSize
	ReadTimeout  time.Duration // Idle timeout for each read, zero disables
	WriteTimeout time.Duration // Idle timeout for each write, zero disables
	DialTimeout  time.Duration // Client only, zero disables
	MaxConns     int           // Server only, concurrent connection limit. Zero means unlimited.
}

func (cfg Config) withDefaults() Config {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return cfg
}

// Server is the file transfer server. It serves files below a single root
// directory, one request per connection.
type Server struct {
	cfg  *Config
	root Root
	sem  *semaphore.Weighted
	bufs sync.Pool

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	wg        sync.WaitGroup
}

func NewServer(root Root, cfg Config) *Server {
	cfg = cfg.withDefaults()
	srv := &Server{
		cfg:       &cfg,
		root:      root,
		listeners: make(map[net.Listener]struct{}),
	}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	if cfg.MaxConns > 0 {
		srv.sem = semaphore.NewWeighted(int64(cfg.MaxConns))
	}
	srv.bufs.New = func() any {
		buf := make([]byte, cfg.ChunkSize)
		return &buf
	}
	return srv
}

// ListenAndServe listens on the TCP address and serves connections until the
// server is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and handles each one in its own goroutine.
// Accept errors are logged and do not stop the loop. Serve returns ErrServerClosed
// once the listener has been closed.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	log.Info("Serving directory", "root", s.root.Dir(), "addr", ln.Addr())
	var delay time.Duration
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return ErrServerClosed
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Warn("Failed to accept connection", "err", err, "retry", common.PrettyDuration(delay))
			time.Sleep(delay)
			continue
		}
		delay = 0

		if !s.addHandler() {
			conn.Close()
			s.release()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			defer s.release()
			s.handleConn(conn)
		}()
	}
}

// Close stops all listeners and waits for running transfers to end.
func (s *Server) Close() error {
	s.mu.Lock()
	s.cancel()
	for ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// addHandler registers a connection handler with the wait group. It fails once
// Close has been called, so that wg.Add never races with wg.Wait.
func (s *Server) addHandler() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// handlerState tracks where a connection is in the protocol.
type handlerState int

const (
	awaitingRequest handlerState = iota
	resolvingPath
	sendingHeader
	streamingFile
	done
)

func (st handlerState) String() string {
	switch st {
	case awaitingRequest:
		return "awaiting-request"
	case resolvingPath:
		return "resolving-path"
	case sendingHeader:
		return "sending-header"
	case streamingFile:
		return "streaming-file"
	case done:
		return "done"
	default:
		return fmt.Sprintf("state-%d", int(st))
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	logger := log.New("remote", conn.RemoteAddr())
	logger.Debug("Connection received")

	buf := s.bufs.Get().(*[]byte)
	defer s.bufs.Put(buf)

	var (
		start = time.Now()
		ts    = newTransferSession(withDeadlines(conn, s.cfg), *buf)
	)
	state, err := s.serveConn(ts, logger)
	if err != nil {
		logger.Error("Transfer failed", "state", state, "path", ts.path, "err", err)
		return
	}
	logger.Info("Transfer completed", "path", ts.path, "size", common.StorageSize(ts.moved),
		"elapsed", common.PrettyDuration(time.Since(start)), "digest", fmt.Sprintf("%x", ts.sum()))
}

// serveConn drives one connection through the protocol states. It returns the state
// in which it stopped. No bytes are written before the file has been opened.
func (s *Server) serveConn(ts *transferSession, logger log.Logger) (handlerState, error) {
	state := awaitingRequest
	rel, err := readRequest(ts.conn)
	if err != nil {
		return state, err
	}

	state = resolvingPath
	ts.path, err = s.root.Resolve(rel)
	if err != nil {
		return state, err
	}

	state = sendingHeader
	// Opening a FIFO or device can block, so check the type before Open.
	if info, err := os.Stat(ts.path); err != nil {
		return state, fmt.Errorf("%w: %w", ErrNotFound, err)
	} else if !info.Mode().IsRegular() {
		return state, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, ts.path)
	}
	file, err := os.Open(ts.path)
	if err != nil {
		return state, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return state, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return state, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, ts.path)
	}
	ts.declared = uint64(info.Size())
	if err := writeHeader(ts.conn, ts.declared); err != nil {
		return state, err
	}

	state = streamingFile
	logger.Info("Transferring file", "path", ts.path, "size", common.StorageSize(ts.declared))
	if err := ts.send(file); err != nil {
		return state, err
	}
	// The file may have changed size since Stat.
	if err := ts.verify(); err != nil {
		return state, err
	}
	return done, nil
}
