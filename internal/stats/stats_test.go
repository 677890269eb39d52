package stats

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(ActiveSessions)
	su.RegisterMetric(TipsTotal)
	su.Run()
	defer su.Stop()

	su.Incr(ActiveSessions)
	su.Incr(ActiveSessions)
	su.Decr(ActiveSessions)
	su.Add(TipsTotal, 50)

	assert.Eventually(t, func() bool {
		return su.vars.Get(ActiveSessions).String() == "1" &&
			su.vars.Get(TipsTotal).String() == "50"
	}, time.Second, 10*time.Millisecond, "expected metrics to be applied")
}
