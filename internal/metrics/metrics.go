package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_connections_active",
			Help: "Currently open realtime connections",
		},
	)

	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_messages_stored_total",
			Help: "Messages persisted, by type",
		},
		[]string{"type"}, // chat, status, image, tenor
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_broadcasts_sent_total",
			Help: "Events fanned out to connections",
		},
		[]string{"event"},
	)

	HistoryBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_history_batches_total",
			Help: "History batches delivered on connect or channel switch",
		},
	)

	// Presence metrics
	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_users_online",
			Help: "Distinct usernames with at least one open connection",
		},
	)

	// Collaborator metrics
	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_media_uploads_total",
			Help: "Image uploads to the media host",
		},
		[]string{"outcome"}, // ok, error
	)

	GIFSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_gif_searches_total",
			Help: "GIF search proxy requests",
		},
	)
)
