package fileserver

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// URLScheme is the scheme of transfer reference URLs.
const URLScheme = "xfer"

// TransferRef is a reference to a file on a remote server.
type TransferRef struct {
	Addr string // host:port
	File string // path relative to the served root
}

// ParseURL parses a transfer reference URL of the form xfer://host:port/path.
func ParseURL(text string) (ref TransferRef, err error) {
	u, err := url.Parse(text)
	if err != nil {
		return ref, errors.New("invalid URL")
	}
	if u.Scheme != URLScheme {
		return ref, errors.New("missing/wrong URL scheme")
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return ref, errors.New("URL host must be host:port")
	}
	if u.Path == "" || u.Path == "/" {
		return ref, errors.New("empty file path")
	}
	file := strings.TrimPrefix(u.Path, "/")
	return TransferRef{Addr: u.Host, File: file}, nil
}

// String encodes the transfer reference as a URL.
func (ref *TransferRef) String() string {
	u := url.URL{
		Scheme: URLScheme,
		Host:   ref.Addr,
		Path:   "/" + ref.File,
	}
	return u.String()
}
