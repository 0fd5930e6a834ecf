package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ManifestBox/config"
	"github.com/BearBump/ManifestBox/internal/broker/kafka"
	"github.com/BearBump/ManifestBox/internal/cache/rediscache"
	"github.com/BearBump/ManifestBox/internal/integrations/carrier"
	"github.com/BearBump/ManifestBox/internal/integrations/carrier/fake"
	"github.com/BearBump/ManifestBox/internal/integrations/carrier/kuaidi100http"
	"github.com/BearBump/ManifestBox/internal/services/ingestion"
	"github.com/BearBump/ManifestBox/internal/services/resolver"
	"github.com/BearBump/ManifestBox/internal/storage/pgmanifest"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ManifestBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ManifestBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "manifest-api"
	}
	topic := cfg.Kafka.ManifestCommittedTopicName
	if topic == "" {
		topic = "manifest.committed"
	}
	snapshotTTL := time.Duration(cfg.ManifestBox.SnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 10 * time.Minute
	}
	ratePerMinute := cfg.ManifestBox.CarrierRateLimitPerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}

	// В docker-compose постгрес поднимается дольше приложения.
	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	defer st.Close()

	redisAddr := cfg.Redis.Addr()
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	var carrierClient carrier.Client
	if cfg.ManifestBox.CarrierAPIKey != "" {
		carrierClient = kuaidi100http.New(
			cfg.ManifestBox.CarrierBaseURL,
			cfg.ManifestBox.CarrierAPIKey,
			cfg.ManifestBox.CarrierCustomer,
		)
	} else {
		// Без ключа API работаем против фейкового трекинга.
		carrierClient = fake.New()
	}

	brokers := cfg.Kafka.Brokers()
	producer := kafka.NewProducer(brokers)
	defer func() { _ = producer.Close() }()
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ing := ingestion.New(st).WithProducer(producer, topic)
	res := resolver.New(st, carrierClient).
		WithSnapshotCache(rc, snapshotTTL).
		WithRateLimiter(rl, ratePerMinute)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runManifestAPI(ctx, manifestAPIOpts{
		httpAddr:      httpAddr,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, ing, res, st, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgmanifest.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgmanifest.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
