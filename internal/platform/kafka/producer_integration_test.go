//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"docdesk/internal/platform/config"
	"docdesk/pkg/testutil/containers"
)

func TestProducer_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer, err := NewProducer(ctx, config.Kafka{Brokers: rp.Brokers, Topic: "producer-test"}, logger)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.EnsureTopic(ctx, "producer-test", 1, 1))
	require.NoError(t, producer.EnsureTopic(ctx, "producer-test", 1, 1), "second call is a no-op")
	require.NoError(t, producer.Produce(ctx, "producer-test", []byte("k"), []byte("v")))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics("producer-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)
	require.Equal(t, "k", string(records[0].Key))
	require.Equal(t, "v", string(records[0].Value))
}
