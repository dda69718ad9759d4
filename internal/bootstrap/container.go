package bootstrap

import (
	"context"
	"log"
	"strings"

	"helmet-compliance-be/internal/config"
	"helmet-compliance-be/internal/controller"
	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/internal/handler"
	"helmet-compliance-be/internal/pkg/logger"
	"helmet-compliance-be/internal/repository/memory"
	"helmet-compliance-be/internal/service"
	"helmet-compliance-be/internal/websocket"
	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"
	pktNats "helmet-compliance-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const eventTopic = "session.events"

type Container struct {
	// Controllers
	FormController      controller.IFormController
	DetectionController controller.IDetectionController
	DashboardController controller.IDashboardController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	SessionHandler *handler.SessionHandler
	WebSocketHub   *websocket.Hub

	// Camera is the simulated capture device, exposed so operators and tests can toggle
	// permission.
	Camera *media.SimulatedCamera

	Logger logger.ILogger

	formRepo      *memory.SessionRepository[*entity.FormSession]
	detectionRepo *memory.SessionRepository[*entity.DetectionSession]
	pubSub        *gochannel.GoChannel
	natsPub       *pktNats.Publisher
	rdb           *redis.Client
	cancel        context.CancelFunc
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	return NewContainerWithLogger(cfg, sysLogger, logger.NewIsolatedLogger("logs/websocket.log"))
}

// NewContainerWithLogger wires everything against the given loggers. External brokers are
// only dialed when their URL is configured.
func NewContainerWithLogger(cfg *config.Config, sysLogger, wsLogger logger.ILogger) *Container {
	// 1. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermillLogger,
	)

	// 2. Infrastructure
	var sink service.EventSink
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			sink = pub
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	wsHub := websocket.NewHub(rdb, wsLogger)

	// 3. Repositories
	formRepo := memory.NewFormSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval, sysLogger)
	detectionRepo := memory.NewDetectionSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval, sysLogger)

	// 4. Simulated collaborators
	failEmail := strings.ToLower(strings.TrimSpace(cfg.Simulator.FailSubmitEmail))
	submitter := form.SimulatedSubmitter{
		Latency: cfg.Simulator.SubmitLatency,
		Fail: func(_ form.Variant, values map[string]string) bool {
			return failEmail != "" && strings.ToLower(strings.TrimSpace(values[form.FieldEmail])) == failEmail
		},
	}
	detector := &media.MockDetector{
		LiveLatency:   cfg.Simulator.LiveDetectionLatency,
		UploadLatency: cfg.Simulator.UploadDetectionLatency,
	}
	camera := media.NewSimulatedCamera(cfg.Simulator.CameraDevices...)
	camera.SetPermission(cfg.Simulator.CameraPermission)

	// 5. Services
	publisherService := service.NewPublisherService(eventTopic, pubSub, sink, sysLogger)
	consumerService := service.NewConsumerService(pubSub, eventTopic, wsHub, wsLogger)

	formService := service.NewFormService(formRepo, submitter, publisherService, cfg.Session.NoticeTTL, sysLogger)
	detectionService := service.NewDetectionService(
		detectionRepo,
		camera,
		media.NewDeviceRegistry(),
		detector,
		publisherService,
		sysLogger,
	)
	dashboardService := service.NewDashboardService(cfg.Simulator.DashboardLatency, cfg.Theme)

	// 6. Controllers
	return &Container{
		FormController:      controller.NewFormController(formService),
		DetectionController: controller.NewDetectionController(detectionService, cfg.Session.MaxUploadBytes),
		DashboardController: controller.NewDashboardController(dashboardService),
		ConsumerService:     consumerService,
		SessionHandler:      handler.NewSessionHandler(formService, detectionService, wsHub, wsLogger),
		WebSocketHub:        wsHub,
		Camera:              camera,
		Logger:              sysLogger,

		formRepo:      formRepo,
		detectionRepo: detectionRepo,
		pubSub:        pubSub,
		natsPub:       natsPub,
		rdb:           rdb,
	}
}

// Start runs the websocket hub and the event consumer in the background.
func (c *Container) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.WebSocketHub.Run(ctx)
	return c.ConsumerService.Consume(ctx)
}

// Shutdown closes every live session, then the brokers.
func (c *Container) Shutdown() {
	c.formRepo.Flush()
	c.detectionRepo.Flush()
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	_ = c.Logger.Sync()
}
