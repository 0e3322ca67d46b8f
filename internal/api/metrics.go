package api

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yok-tottii/voicememo/internal/recording"
	"github.com/yok-tottii/voicememo/internal/reversal"
)

type metrics struct {
	recordingsStarted  prometheus.Counter
	startFailures      prometheus.Counter
	recordingsFinished *prometheus.CounterVec
	recordedSeconds    prometheus.Histogram
	reversals          *prometheus.CounterVec
	encodedBytes       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		recordingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voicememo_recordings_started_total",
			Help: "Recordings that acquired the capture device",
		}),
		startFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicememo_recording_start_failures_total",
			Help: "Recordings that could not acquire the capture device",
		}),
		recordingsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicememo_recordings_finished_total",
			Help: "Finished recordings by outcome",
		}, []string{"outcome"}), // outcome=stopped|discarded|empty
		recordedSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicememo_recorded_seconds",
			Help:    "Duration of stopped recordings",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		reversals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicememo_reversals_total",
			Help: "Reversal requests by result",
		}, []string{"result"}), // result=success|decode_error|canceled|failure
		encodedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "voicememo_reversal_encoded_bytes_total",
			Help: "Bytes of WAV produced by reversal",
		}),
	}
}

func (m *metrics) finished(state recording.State, result recording.Result) {
	switch {
	case state == recording.Discarded:
		m.recordingsFinished.WithLabelValues("discarded").Inc()
	case !result.Recorded:
		m.recordingsFinished.WithLabelValues("empty").Inc()
	default:
		m.recordingsFinished.WithLabelValues("stopped").Inc()
		m.recordedSeconds.Observe(result.Duration.Seconds())
	}
}

func (m *metrics) reversal(err error) {
	switch {
	case err == nil:
		m.reversals.WithLabelValues("success").Inc()
	case errors.Is(err, reversal.ErrDecode):
		m.reversals.WithLabelValues("decode_error").Inc()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.reversals.WithLabelValues("canceled").Inc()
	default:
		m.reversals.WithLabelValues("failure").Inc()
	}
}
