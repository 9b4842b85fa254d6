package modem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelCommand = "command"
	labelResult  = "result"
	labelType    = "type"
	labelReason  = "reason"
)

var (
	cc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rak811_command_count",
		Help: "The number of AT commands issued (per command and result).",
	}, []string{labelCommand, labelResult})
	cd = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rak811_command_duration_seconds",
		Help:    "The time between writing an AT command and its outcome (per command).",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{labelCommand})
	dc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rak811_downlink_count",
		Help: "The number of downlink notifications (per type).",
	}, []string{labelType})
	mc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rak811_dropped_input_count",
		Help: "The number of received lines dropped because they were malformed (per reason).",
	}, []string{labelReason})
)

func commandCount(cmd, result string) prometheus.Counter {
	return cc.With(prometheus.Labels{labelCommand: cmd, labelResult: result})
}

func commandDuration(cmd string) prometheus.Observer {
	return cd.With(prometheus.Labels{labelCommand: cmd})
}

func downlinkCount(typ string) prometheus.Counter {
	return dc.With(prometheus.Labels{labelType: typ})
}

func droppedInputCount(reason string) prometheus.Counter {
	return mc.With(prometheus.Labels{labelReason: reason})
}
