package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// Each test registers on the default registry, so namespaces must be
// unique per constructed collector.
var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("negotest%d", seq)
}

func TestNewCollector(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	require.NotNil(t, c)
	require.NotNil(t, c.gamesTotal)
	require.NotNil(t, c.turnsTotal)
	require.NotNil(t, c.parseFailuresTotal)
	require.NotNil(t, c.llmTokensUsed)
	require.NotNil(t, c.memoryRetrievalsTotal)
	require.NotNil(t, c.memoryRetrievalDuration)
}

func TestRecordMemoryRetrieval(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	c.RecordMemoryRetrieval("hybrid", "ok", 12*time.Millisecond)
	c.RecordMemoryRetrieval("hybrid", "ok", 8*time.Millisecond)
	c.RecordMemoryRetrieval("semantic", "error", time.Millisecond)

	require.InDelta(t, 2, testutil.ToFloat64(c.memoryRetrievalsTotal.WithLabelValues("hybrid", "ok")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(c.memoryRetrievalsTotal.WithLabelValues("semantic", "error")), 0.001)
	require.Equal(t, 2, testutil.CollectAndCount(c.memoryRetrievalDuration))
}

func TestRecordMethodsTolerateNilCollector(t *testing.T) {
	var c *Collector

	c.RecordGame("buy-sell", "agreement", time.Second)
	c.RecordTurn("buy-sell", "RED", time.Second)
	c.RecordParseFailure("buy-sell", "RED")
	c.RecordTokens("buy-sell", "RED", 42)
	c.RecordMemoryRetrieval("hybrid", "ok", time.Millisecond)
}
