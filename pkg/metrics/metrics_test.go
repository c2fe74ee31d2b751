package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func TestRecordTrades(t *testing.T) {
	accepted := counterValue(TradesProcessed.WithLabelValues("accepted"))
	skipped := counterValue(TradesProcessed.WithLabelValues("skipped"))

	RecordTrades(5, 2)

	assert.Equal(t, accepted+5, counterValue(TradesProcessed.WithLabelValues("accepted")))
	assert.Equal(t, skipped+2, counterValue(TradesProcessed.WithLabelValues("skipped")))
}

func TestRecordGainEntries(t *testing.T) {
	unmatched := counterValue(GainEntries.WithLabelValues("unmatched"))

	RecordGainEntries(3, 1)

	assert.Equal(t, unmatched+1, counterValue(GainEntries.WithLabelValues("unmatched")))
}

func TestRecordFormRequest(t *testing.T) {
	before := counterValue(FormRequests.WithLabelValues("2024", "true"))

	RecordFormRequest("2024", true)

	assert.Equal(t, before+1, counterValue(FormRequests.WithLabelValues("2024", "true")))
}
