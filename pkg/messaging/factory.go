package messaging

import (
	"jobber/pkg/config"
)

// Exchange, queue and routing key names shared by every Jobber service.
const (
	BuyerUpdateExchange       = "jobber-buyer-update"
	SellerUpdateExchange      = "jobber-seller-update"
	ReviewExchange            = "jobber-review"
	UpdateGigExchange         = "jobber-update-gig"
	GigSeedExchange           = "jobber-seed-gig"
	EmailNotificationExchange = "jobber-email-notification"

	UserBuyerQueue    = "user-buyer-queue"
	UserSellerQueue   = "user-seller-queue"
	SellerReviewQueue = "seller-review-queue"
	UserGigSeedQueue  = "user-gig-seed-queue"
	AuthEmailQueue    = "auth-email-queue"
	OrderEmailQueue   = "order-email-queue"

	UserBuyerKey      = "user-buyer"
	UserSellerKey     = "user-seller"
	UpdateGigKey      = "update-gig"
	GetSellersKey     = "get-sellers"
	ReceiveSellersKey = "receive-sellers"
	AuthEmailKey      = "auth-email"
	OrderEmailKey     = "order-email"
)

// Factory builds connection, publisher and consumer configs for the Jobber
// topology from the service configuration.
type Factory struct {
	cfg *config.Config
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{URL: f.cfg.RabbitMQURL}
}

// Consumer applies the service's consumer settings to topology. The retry
// policy is left nil unless the service enabled it and passes a sink.
func (f *Factory) Consumer(topology Topology, sink DeadLetterSink) ConsumerConfig {
	c := f.cfg.Consumer
	cc := ConsumerConfig{
		Topology:       topology,
		ConsumerTag:    f.cfg.ServiceName + "-" + topology.Queue,
		PrefetchCount:  c.PrefetchCount,
		Concurrency:    c.Concurrency,
		HandlerTimeout: c.HandlerTimeout,
		ReconnectDelay: c.ReconnectDelay,
		MaxReconnects:  c.MaxReconnects,
	}
	if c.FailurePolicy == config.FailurePolicyRetry {
		cc.Retry = &RetryPolicy{
			MaxRetries:      c.MaxRetries,
			InitialInterval: c.RetryInterval,
			DeadLetter:      sink,
		}
	}
	return cc
}

func (f *Factory) BuyerUpdateConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange:   BuyerUpdateExchange,
		Kind:       Direct,
		RoutingKey: UserBuyerKey,
		Queue:      UserBuyerQueue,
	}, sink)
}

func (f *Factory) SellerUpdateConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange:   SellerUpdateExchange,
		Kind:       Direct,
		RoutingKey: UserSellerKey,
		Queue:      UserSellerQueue,
	}, sink)
}

func (f *Factory) ReviewConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange: ReviewExchange,
		Kind:     Fanout,
		Queue:    SellerReviewQueue,
	}, sink)
}

func (f *Factory) GigSeedConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange:   GigSeedExchange,
		Kind:       Direct,
		RoutingKey: GetSellersKey,
		Queue:      UserGigSeedQueue,
	}, sink)
}

func (f *Factory) AuthEmailConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange:   EmailNotificationExchange,
		Kind:       Direct,
		RoutingKey: AuthEmailKey,
		Queue:      AuthEmailQueue,
	}, sink)
}

func (f *Factory) OrderEmailConsumer(sink DeadLetterSink) ConsumerConfig {
	return f.Consumer(Topology{
		Exchange:   EmailNotificationExchange,
		Kind:       Direct,
		RoutingKey: OrderEmailKey,
		Queue:      OrderEmailQueue,
	}, sink)
}

func (f *Factory) UpdateGigPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    UpdateGigExchange,
		RoutingKey:  UpdateGigKey,
		Description: "Sent buyer review to gig service",
	}
}

func (f *Factory) ReceiveSellersPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    GigSeedExchange,
		RoutingKey:  ReceiveSellersKey,
		Description: "Sent sellers to gig service",
	}
}

func (f *Factory) BuyerUpdatePublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    BuyerUpdateExchange,
		RoutingKey:  UserBuyerKey,
		Description: "Buyer details sent to users service",
	}
}

func (f *Factory) AuthEmailPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    EmailNotificationExchange,
		RoutingKey:  AuthEmailKey,
		Description: "Verify email message sent to notification service",
	}
}

func (f *Factory) SellerUpdatePublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    SellerUpdateExchange,
		RoutingKey:  UserSellerKey,
		Description: "Order details sent to users service",
	}
}

func (f *Factory) PurchasedGigsPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    BuyerUpdateExchange,
		RoutingKey:  UserBuyerKey,
		Description: "Purchased gig sent to users service",
	}
}

func (f *Factory) OrderEmailPublisher() PublisherConfig {
	return PublisherConfig{
		Exchange:    EmailNotificationExchange,
		RoutingKey:  OrderEmailKey,
		Description: "Order email sent to notification service",
	}
}
