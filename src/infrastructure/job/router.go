package job

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig controls redelivery of failed job messages
type RouterConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
	}
}

// NewRouter wires the job processor on Topic behind the recoverer, correlation
// and retry middlewares. The caller runs and closes the router. The retry
// middleware redelivers to the handler, which acks jobs already marked
// completed or failed, so a failed ingestion run is not repeated.
func NewRouter(
	cfg RouterConfig,
	subscriber message.Subscriber,
	service *JobService,
	logger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialInterval,
			Logger:          logger,
		}.Middleware,
	)

	router.AddNoPublisherHandler(
		"job_processor",
		Topic,
		subscriber,
		service.ProcessJobMessage,
	)
	return router, nil
}

// NewAMQPPublisher publishes to durable queues at url
func NewAMQPPublisher(url string, logger watermill.LoggerAdapter) (*amqp.Publisher, error) {
	publisher, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(url), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %w", err)
	}
	return publisher, nil
}

// NewAMQPSubscriber consumes durable queues at url. Nacked messages are
// dropped rather than requeued once the retry middleware gives up.
func NewAMQPSubscriber(url string, logger watermill.LoggerAdapter) (*amqp.Subscriber, error) {
	cfg := amqp.NewDurableQueueConfig(url)
	cfg.Consume.NoRequeueOnNack = true
	subscriber, err := amqp.NewSubscriber(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp subscriber: %w", err)
	}
	return subscriber, nil
}
