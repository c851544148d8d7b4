package fileserver

import (
	"net"
	"time"
)

// deadlineConn sets a fresh deadline before every Read and Write, turning the
// configured timeouts into idle timeouts. Zero durations leave the deadline alone.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func withDeadlines(c net.Conn, cfg *Config) net.Conn {
	if cfg.ReadTimeout == 0 && cfg.WriteTimeout == 0 {
		return c
	}
	return &deadlineConn{Conn: c, readTimeout: cfg.ReadTimeout, writeTimeout: cfg.WriteTimeout}
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
