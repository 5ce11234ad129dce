package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustd_rpc_requests_total",
		Help: "JSON-RPC requests by method.",
	}, []string{"method"})

	rpcFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustd_rpc_failures_total",
		Help: "JSON-RPC failures by method and error kind.",
	}, []string{"method", "kind"})

	verifyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustd_verify_outcomes_total",
		Help: "Admin and consent verification outcomes.",
	}, []string{"surface", "outcome"})
)
