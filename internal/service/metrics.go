package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scheduleRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Total number of schedule generation runs",
	})

	tasksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tasks_created_total",
		Help: "Total number of posting tasks created by claims",
	})

	candidatesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_candidates_skipped_total",
		Help: "Candidates rejected during claiming, by reason",
	}, []string{"reason"})

	claimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_claim_conflicts_total",
		Help: "Version conflicts observed while committing claims",
	})

	scheduleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Duration of schedule generation runs",
		Buckets: prometheus.DefBuckets,
	})

	notificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_notifications_sent_total",
		Help: "Operator notifications emitted, by type",
	}, []string{"type"})

	groupsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_groups_imported_total",
		Help: "Import outcomes, by result",
	}, []string{"result"})
)
