package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phishguard_tracking_events_processed_total",
		Help: "Tracking events folded into the funnel, by event type.",
	}, []string{"event_type"})

	orphanEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_tracking_orphan_events_total",
		Help: "Tracking events referencing an unknown campaign.",
	})

	consumerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_tracking_consumer_errors_total",
		Help: "Errors while receiving or persisting tracking events.",
	})

	schedulerDispatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_scheduler_waves_dispatched_total",
		Help: "Dispatch waves handed to the delivery collaborator.",
	})

	schedulerRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_scheduler_recipients_dispatched_total",
		Help: "Recipients across all dispatched waves.",
	})

	schedulerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishguard_scheduler_errors_total",
		Help: "Errors during scheduler dispatch passes.",
	})
)
