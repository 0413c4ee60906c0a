// Copyright 2025 Radicle Link
//
// Transport sessions.
//
// go-git drives a fetch as one session: ref advertisement, then the pack
// exchange. The shim claims stateless semantics, so each of those runs
// over its own sub-connection with its own header line; the -ls header
// tells the paired server to stop after advertising.

package transport

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	gittransport "github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkachmar/radicle-link/pkg/uri"
)

// NewUploadPackSession implements the VCS client transport interface for
// fetches.
func (t *RadTransport) NewUploadPackSession(ep *gittransport.Endpoint, _ gittransport.AuthMethod) (gittransport.UploadPackSession, error) {
	url, err := FromEndpoint(ep)
	if err != nil {
		return nil, err
	}
	return &uploadPackSession{session: newSession(t, url)}, nil
}

// NewReceivePackSession implements the VCS client transport interface for
// pushes.
func (t *RadTransport) NewReceivePackSession(ep *gittransport.Endpoint, _ gittransport.AuthMethod) (gittransport.ReceivePackSession, error) {
	url, err := FromEndpoint(ep)
	if err != nil {
		return nil, err
	}
	return &receivePackSession{session: newSession(t, url)}, nil
}

type session struct {
	t      *RadTransport
	url    GitURL
	connID uuid.UUID

	streams []GitStream
}

func newSession(t *RadTransport, url GitURL) *session {
	return &session{t: t, url: url, connID: uuid.New()}
}

// open dials a sub-connection and emits the header line before anything
// else travels on it.
func (s *session) open(ctx context.Context, service Service) (GitStream, error) {
	stream, err := s.t.openStream(ctx, s.url, service)
	if err != nil {
		return nil, err
	}

	header := Header{
		Service:    service,
		URN:        uri.NewURN(s.url.Repo),
		RemotePeer: s.url.RemotePeer,
	}
	if _, err := header.WriteTo(stream); err != nil {
		stream.Close()
		return nil, err
	}

	s.t.logger().Debug("opened sub-connection",
		zap.Stringer("conn", s.connID),
		zap.String("service", string(service)),
		zap.Stringer("remote", s.url.RemotePeer),
		zap.Stringer("repo", s.url.Repo),
	)

	s.streams = append(s.streams, stream)
	return stream, nil
}

// advertisedRefs runs one ref-advertisement-only exchange.
func (s *session) advertisedRefs(ctx context.Context, service Service) (*packp.AdvRefs, error) {
	stream, err := s.open(ctx, service)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	ar := packp.NewAdvRefs()
	if err := ar.Decode(stream); err != nil {
		return nil, err
	}
	return ar, nil
}

func (s *session) Close() error {
	var first error
	for _, stream := range s.streams {
		if err := stream.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.streams = nil
	return first
}

type uploadPackSession struct {
	*session
	refs *packp.AdvRefs
}

func (s *uploadPackSession) AdvertisedReferences() (*packp.AdvRefs, error) {
	return s.AdvertisedReferencesContext(context.TODO())
}

func (s *uploadPackSession) AdvertisedReferencesContext(ctx context.Context) (*packp.AdvRefs, error) {
	if s.refs != nil {
		return s.refs, nil
	}
	refs, err := s.advertisedRefs(ctx, ServiceUploadPackLS)
	if err != nil {
		return nil, err
	}
	s.refs = refs
	return refs, nil
}

func (s *uploadPackSession) UploadPack(ctx context.Context, req *packp.UploadPackRequest) (*packp.UploadPackResponse, error) {
	if req.IsEmpty() {
		return nil, gittransport.ErrEmptyUploadPackRequest
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stream, err := s.open(ctx, ServiceUploadPack)
	if err != nil {
		return nil, err
	}
	if err := req.UploadRequest.Encode(stream); err != nil {
		stream.Close()
		return nil, err
	}
	if err := req.UploadHaves.Encode(stream, true); err != nil {
		stream.Close()
		return nil, err
	}

	// The response keeps the stream: the packfile is read from it by the
	// caller, and released via the response's Close.
	res := packp.NewUploadPackResponse(req)
	if err := res.Decode(stream); err != nil {
		stream.Close()
		return nil, err
	}
	return res, nil
}

type receivePackSession struct {
	*session
	refs *packp.AdvRefs
}

func (s *receivePackSession) AdvertisedReferences() (*packp.AdvRefs, error) {
	return s.AdvertisedReferencesContext(context.TODO())
}

func (s *receivePackSession) AdvertisedReferencesContext(ctx context.Context) (*packp.AdvRefs, error) {
	if s.refs != nil {
		return s.refs, nil
	}
	refs, err := s.advertisedRefs(ctx, ServiceReceivePackLS)
	if err != nil {
		return nil, err
	}
	s.refs = refs
	return refs, nil
}

func (s *receivePackSession) ReceivePack(ctx context.Context, req *packp.ReferenceUpdateRequest) (*packp.ReportStatus, error) {
	stream, err := s.open(ctx, ServiceReceivePack)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := req.Encode(stream); err != nil {
		return nil, err
	}
	if !req.Capabilities.Supports(capability.ReportStatus) {
		return nil, nil
	}

	report := packp.NewReportStatus()
	if err := report.Decode(stream); err != nil {
		return nil, err
	}
	return report, report.Error()
}
