// Copyright 2025 Radicle Link
//
// Stream factory registry and global registration.
//
// The VCS client keeps one transport per URL scheme per process, so the
// rad-p2p registration happens exactly once; re-registration is a no-op
// that returns a handle on the same process-wide factory table. The table
// is keyed by local peer id, which is what lets tests run multiple peers
// in the same process.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"go.uber.org/zap"

	"github.com/jkachmar/radicle-link/pkg/metrics"
	"github.com/jkachmar/radicle-link/pkg/peer"
)

// StreamFactory opens streams to remote peers on behalf of one local
// peer. addr is the optional socket-address dial hint from the wire URL,
// empty when absent. Implementations must honor ctx for dialing and for
// the lifetime of the stream.
type StreamFactory interface {
	OpenStream(ctx context.Context, to peer.ID, addr string) (GitStream, error)
}

// openRetries bounds the backoff when a factory fails transiently.
const openRetries = 3

var (
	registerOnce sync.Once
	global       *RadTransport
)

// Register installs the rad-p2p scheme with the VCS client. Safe to call
// any number of times; every call returns a handle on the same factory
// table, which can then be used to register additional stream factories.
func Register() *RadTransport {
	registerOnce.Do(func() {
		global = &RadTransport{
			factories: make(map[peer.ID]StreamFactory, 1),
			log:       zap.NewNop(),
		}
		client.InstallProtocol(URLScheme, global)
	})
	return global
}

// RadTransport holds the process-wide table of stream factories and
// implements the VCS client's transport interface for the rad-p2p scheme.
type RadTransport struct {
	mu        sync.RWMutex
	factories map[peer.ID]StreamFactory
	log       *zap.Logger
}

// SetLogger replaces the transport logger; the default is a nop logger.
func (t *RadTransport) SetLogger(log *zap.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = log
}

// RegisterStreamFactory registers fac to open streams on behalf of
// localPeer. A factory registered for the same peer is replaced; no
// ordering is guaranteed with respect to in-flight fetches.
func (t *RadTransport) RegisterStreamFactory(localPeer peer.ID, fac StreamFactory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[localPeer] = fac
}

func (t *RadTransport) logger() *zap.Logger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.log
}

// openStream looks up the factory for the URL's local peer and opens a
// stream to the remote, retrying transient failures with backoff.
func (t *RadTransport) openStream(ctx context.Context, url GitURL, service Service) (GitStream, error) {
	t.mu.RLock()
	fac, ok := t.factories[url.LocalPeer]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFactory, url.LocalPeer)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	stream, err := backoff.RetryWithData(func() (GitStream, error) {
		return fac.OpenStream(ctx, url.RemotePeer, url.RemoteAddr)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, openRetries), ctx))
	if err != nil {
		metrics.StreamOpenFailures.WithLabelValues(string(service)).Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoConnection, url.RemotePeer, err)
	}

	metrics.StreamsOpened.WithLabelValues(string(service)).Inc()
	return newSyncStream(ctx, stream), nil
}
