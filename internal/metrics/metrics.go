// Copyright 2026 The Drover Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the supervisor's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// workersDesired is the configured pool size.
	workersDesired = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_workers_desired",
			Help: "Configured number of worker processes",
		},
	)

	// workersLive counts workers currently ready or serving.
	workersLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_workers_live",
			Help: "Worker processes currently ready or serving",
		},
	)

	// workersFailed counts identities abandoned after exhausting their
	// restart budget.
	workersFailed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_workers_failed",
			Help: "Worker identities given up on after repeated crashes",
		},
	)

	// workerSpawns tracks process launches by worker identity.
	workerSpawns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_worker_spawns_total",
			Help: "Total worker process launches by worker identity",
		},
		[]string{"worker"},
	)

	// workerExits tracks process exits by identity and outcome.
	workerExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_worker_exits_total",
			Help: "Total worker process exits by worker identity and outcome",
		},
		[]string{"worker", "outcome"},
	)

	// workerRestarts tracks crash-triggered respawns by identity.
	workerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_worker_restarts_total",
			Help: "Total crash-triggered worker restarts by worker identity",
		},
		[]string{"worker"},
	)

	// workerStartup observes the time from spawn to readiness.
	workerStartup = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drover_worker_startup_seconds",
			Help:    "Time from worker spawn to readiness report",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// reloads tracks rolling restarts by trigger.
	reloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_reloads_total",
			Help: "Total rolling restarts by trigger",
		},
		[]string{"trigger"},
	)

	// lifecycleState is a one-hot gauge naming the current state.
	lifecycleState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drover_state",
			Help: "Current lifecycle state (1 for the active state)",
		},
		[]string{"state"},
	)

	// eventCount tracks every journaled event by type.
	eventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_events_total",
			Help: "Total supervisor events by type",
		},
		[]string{"type"},
	)
)

// Handler returns the HTTP handler serving the Prometheus exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetDesired records the configured pool size.
func SetDesired(n int) {
	workersDesired.Set(float64(n))
}

// SetLive records the number of workers currently ready or serving.
func SetLive(n int) {
	workersLive.Set(float64(n))
}

// SetFailed records the number of persistently failed worker identities.
func SetFailed(n int) {
	workersFailed.Set(float64(n))
}

// RecordSpawn increments the launch counter for a worker identity.
func RecordSpawn(worker int) {
	workerSpawns.WithLabelValues(strconv.Itoa(worker)).Inc()
}

// RecordExit increments the exit counter for a worker identity.
func RecordExit(worker int, outcome string) {
	workerExits.WithLabelValues(strconv.Itoa(worker), outcome).Inc()
}

// RecordRestart increments the restart counter for a worker identity.
func RecordRestart(worker int) {
	workerRestarts.WithLabelValues(strconv.Itoa(worker)).Inc()
}

// ObserveStartup records how long a worker took to become ready.
func ObserveStartup(seconds float64) {
	workerStartup.Observe(seconds)
}

// RecordReload increments the reload counter for a trigger.
func RecordReload(trigger string) {
	reloads.WithLabelValues(trigger).Inc()
}

// SetState marks the given lifecycle state as active.
func SetState(state string) {
	lifecycleState.Reset()
	lifecycleState.WithLabelValues(state).Set(1)
}

// RecordEvent increments the event counter for a type.
func RecordEvent(eventType string) {
	eventCount.WithLabelValues(eventType).Inc()
}
