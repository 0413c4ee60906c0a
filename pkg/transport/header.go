// Copyright 2025 Radicle Link
//
// Per-connection header line.
//
// Before the first payload byte travels in either direction, the shim
// emits one text line naming the service, the urn and the remote peer, so
// the receiving side can multiplex by identity before git framing begins:
//
//	<service> <urn> <remote-peer> '\n'
//
// The shim presents itself to the VCS client as stateless, so the header
// is repeated on every sub-connection; the -ls service variants indicate
// a ref-advertisement-only exchange. The wire protocol is therefore not
// compatible with a stock git daemon; only paired servers speak it.

package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jkachmar/radicle-link/pkg/peer"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// Service names one half of a fetch or push exchange.
type Service string

// Wire service tags
const (
	// ServiceUploadPackLS advertises refs for a fetch, nothing more.
	ServiceUploadPackLS Service = "git-upload-pack-ls"
	// ServiceUploadPack is the fetch pack exchange, haves included.
	ServiceUploadPack Service = "git-upload-pack"
	// ServiceReceivePackLS advertises refs for a push, nothing more.
	ServiceReceivePackLS Service = "git-receive-pack-ls"
	// ServiceReceivePack is the push pack exchange.
	ServiceReceivePack Service = "git-receive-pack"
)

// ParseService validates a wire service tag.
func ParseService(s string) (Service, error) {
	switch Service(s) {
	case ServiceUploadPackLS, ServiceUploadPack, ServiceReceivePackLS, ServiceReceivePack:
		return Service(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownService, s)
	}
}

// Header is the line sent once per sub-connection.
type Header struct {
	Service    Service
	URN        uri.URN
	RemotePeer peer.ID
}

func (h Header) String() string {
	return fmt.Sprintf("%s %s %s\n", h.Service, h.URN, h.RemotePeer)
}

// WriteTo emits the header line.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, h.String())
	return int64(n), err
}

// ParseHeader consumes exactly one header line from r. The paired server
// calls this before any git-protocol framing.
func ParseHeader(r *bufio.Reader) (Header, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	fields := strings.Fields(strings.TrimSuffix(line, "\n"))
	if len(fields) != 3 {
		return Header{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedHeader, len(fields))
	}

	service, err := ParseService(fields[0])
	if err != nil {
		return Header{}, err
	}
	urn, err := uri.ParseURN(fields[1])
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	remote, err := peer.Parse(fields[2])
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	return Header{Service: service, URN: urn, RemotePeer: remote}, nil
}
