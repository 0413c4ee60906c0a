// Copyright 2025 Radicle Link
//
// Prometheus collectors for the verification and replication paths.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for VerificationsTotal
const (
	OutcomeVerified = "verified"
	OutcomeFailed   = "failed"
)

var (
	// VerificationsTotal counts history folds by outcome.
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radicle",
		Subsystem: "identity",
		Name:      "verifications_total",
		Help:      "History folds performed, labeled by outcome.",
	}, []string{"outcome"})

	// StreamsOpened counts transport streams opened, labeled by service.
	StreamsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radicle",
		Subsystem: "transport",
		Name:      "streams_opened_total",
		Help:      "Peer streams opened on behalf of the VCS client, labeled by service.",
	}, []string{"service"})

	// StreamOpenFailures counts stream opens that failed after retries.
	StreamOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radicle",
		Subsystem: "transport",
		Name:      "stream_open_failures_total",
		Help:      "Stream opens that failed after retries, labeled by service.",
	}, []string{"service"})
)
