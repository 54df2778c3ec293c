package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RProject/data/database/mgo/mongoutil"
	"RProject/global"
	"RProject/logger"
	"RProject/middleware"
	"RProject/middleware/security"
	chatmod "RProject/module/chat"
	chatservice "RProject/module/chat/service"
	chatstore "RProject/module/chat/store"
	notifymod "RProject/module/notify"
	notifyservice "RProject/module/notify/service"
	notifystore "RProject/module/notify/store"
	userservice "RProject/module/user/service"
	wsgateway "RProject/service/chat"
	"RProject/service/dispatcher"
	"RProject/service/kafka"
	"RProject/service/natsx"
	"RProject/service/push"
	"RProject/service/storage"
	redisstore "RProject/service/storage/redis"
	"RProject/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	global.Load()
	cfg := global.Config

	ids.SetNodeID(int64(hash32(cfg.NodeID) % 1024))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// storage
	mongoCli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
		Uri:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	must(err, "connect mongo")
	db := mongoCli.GetDB()

	roomStore := chatstore.NewMongoRoomStore(db)
	msgStore := chatstore.NewMongoMessageStore(db)
	noteStore := notifystore.NewMongoNotificationStore(db)
	deviceStore := notifystore.NewMongoPushEndpointStore(db)
	for name, fn := range map[string]func(context.Context) error{
		"chat_room":     roomStore.EnsureIndexes,
		"chat_message":  msgStore.EnsureIndexes,
		"notification":  noteStore.EnsureIndexes,
		"push_endpoint": deviceStore.EnsureIndexes,
	} {
		must(fn(ctx), "ensure indexes "+name)
	}

	must(redisstore.InitRedis(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), "connect redis")
	defer func() { _ = redisstore.CloseRedis() }()
	presence := storage.NewPresence(redisstore.GetRedis(), cfg.NodeID)

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	must(err, "connect postgres")
	defer pool.Close()
	users := userservice.NewPgDirectory(pool)

	// bus
	natsCli, err := natsx.NewClient(natsx.Conf{
		URL:  cfg.NatsURL,
		Name: "chat-core-" + cfg.NodeID,
		// plain subscriptions: every gateway sees every event and serves
		// its own local sessions; offline push is deduped through the
		// presence claim
		Routes: map[string]natsx.Route{
			chatservice.BizChatEvents:     {Subject: "im.chat.events"},
			notifyservice.BizNotifyEvents: {Subject: "im.notify.events"},
		},
	})
	must(err, "connect nats")
	producer := natsx.NewProducer(natsCli)

	// domain services
	rooms := chatservice.NewRoomService(roomStore, msgStore, users)
	msgs := chatservice.NewMessageService(rooms, msgStore, producer)
	ledger := notifyservice.NewLedger(noteStore, producer).WithDevices(deviceStore)

	must(kafka.InitKafkaClient(cfg.KafkaBrokers), "connect kafka")
	defer kafka.CloseKafka()
	if cfg.KafkaAuditEnabled {
		must(kafka.InitSyncProducerFromClient(), "kafka producer")
		ledger.WithAudit(kafka.NewAuditProducer(), cfg.KafkaAuditTopic)
	}

	// realtime gateway
	mgr := wsgateway.NewConnManager(wsgateway.ManagerConf{
		MaxPerUser:  8,
		EvictOldest: true,
	}, cfg.NodeID)
	defer mgr.Close()
	verifier := security.NewVerifier(string(cfg.JWTSecret))
	ws := wsgateway.NewServer(mgr, verifier, users, msgs, rooms, presence)

	pushCli := push.NewClient(push.Conf{Endpoint: cfg.PushEndpoint, APIKey: cfg.PushAPIKey})
	disp := dispatcher.New(dispatcher.Conf{}, rooms, mgr, presence, deviceStore, pushCli)

	// consumers feed the dispatcher; decode failures are dropped, not retried
	consumer := natsx.NewConsumer(natsCli)
	onEvent := func(_ context.Context, subject string, data []byte) error {
		ev, err := dispatcher.DecodeEvent(data)
		if err != nil {
			logger.Errorf("[bus] undecodable event on %s: %v", subject, err)
			return nil
		}
		disp.Enqueue(ev)
		return nil
	}
	must(consumer.Subscribe(chatservice.BizChatEvents, onEvent), "subscribe chat events")
	must(consumer.Subscribe(notifyservice.BizNotifyEvents, onEvent), "subscribe notify events")

	must(kafka.StartConsumerGroup(ctx, cfg.KafkaGroupID, []string{cfg.KafkaFollowTopic},
		func(ctx context.Context, _ string, value []byte) error {
			return ledger.HandleFollowEvent(ctx, value)
		}), "kafka follow consumer")

	// http surface
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	rt := middleware.NewRoutes(security.Middleware(verifier, users))
	chatmod.NewHandler(rooms, msgs).Register(r, rt)
	notifymod.NewHandler(ledger).Register(r, rt)
	r.GET("/ws", ws.HandleWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	go func() {
		logger.Infof("[main] %s %s listening on %s", cfg.NodeType, cfg.NodeID, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[main] http server: %v", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Infof("[main] received %s, shutting down", sig)
	case <-ctx.Done():
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Errorf("[main] shutdown: %v", err)
	}

	// intake stops before the workers: the bus must be silent before the
	// dispatcher queues drain and close
	natsCli.Close()
	disp.Close()
}

func must(err error, what string) {
	if err != nil {
		logger.Errorf("[main] %s: %+v", what, err)
		os.Exit(1)
	}
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
