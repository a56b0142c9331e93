package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedash_updates_total",
		Help: "Price updates applied to the cache",
	}, []string{"symbol"})

	MalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricedash_malformed_messages_total",
		Help: "Feed messages dropped because they failed validation",
	})

	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedash_anomalies_total",
		Help: "Anomaly flags raised for the displayed symbol",
	}, []string{"symbol"})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedash_trades_total",
		Help: "Paper trades by side and result",
	}, []string{"side", "result"})

	HistoryLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedash_history_loads_total",
		Help: "History loads by result",
	}, []string{"result"})

	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricedash_feed_connected",
		Help: "1 while the price feed is subscribed",
	})
)

var PushClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pricedash_push_clients",
	Help: "Websocket clients receiving render events",
})
