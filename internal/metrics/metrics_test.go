package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if cyclesTotal == nil || topicRunsTotal == nil || productsAddedTotal == nil ||
		webhookBatchesTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(cyclesTotal.WithLabelValues("partial"))
	ObserveCycle("partial", 3*time.Second)
	if val := testutil.ToFloat64(cyclesTotal.WithLabelValues("partial")); val != before+1 {
		t.Errorf("expected partial cycles to be %f, got %f", before+1, val)
	}
	if val := testutil.CollectAndCount(cycleDurationSeconds); val <= 0 {
		t.Errorf("expected cycle duration to be observed, got %d", val)
	}

	addedBefore := testutil.ToFloat64(productsAddedTotal)
	ObserveTopicRun("notified", 4)
	ObserveTopicRun("unchanged", 0)
	if val := testutil.ToFloat64(productsAddedTotal); val != addedBefore+4 {
		t.Errorf("expected products added to be %f, got %f", addedBefore+4, val)
	}

	batchesBefore := testutil.ToFloat64(webhookBatchesTotal.WithLabelValues("failed"))
	ObserveWebhookBatch("failed")
	if val := testutil.ToFloat64(webhookBatchesTotal.WithLabelValues("failed")); val != batchesBefore+1 {
		t.Errorf("expected failed batches to be %f, got %f", batchesBefore+1, val)
	}
}
