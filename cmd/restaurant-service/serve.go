package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mark-4989/restaurant-service-go/internal/db"
	"github.com/mark-4989/restaurant-service-go/internal/dedup"
	"github.com/mark-4989/restaurant-service-go/internal/dispatch"
	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/events"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	httpapi "github.com/mark-4989/restaurant-service-go/internal/http"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
	"github.com/mark-4989/restaurant-service-go/internal/order"
	"github.com/mark-4989/restaurant-service-go/internal/realtime"
	"github.com/mark-4989/restaurant-service-go/internal/sequence"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, WebSocket hub and event consumers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

// eventPublisher covers both the AMQP publisher and the in-process one.
type eventPublisher interface {
	order.Publisher
	dispatch.Publisher
}

func serve(ctx context.Context) error {
	pool, err := db.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(cfg.Database.DSN, logger); err != nil {
			return err
		}
	}

	hub := realtime.NewHub(realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.CORS.AllowOrigins,
		Logger:         logger.Named("realtime"),
	})
	defer hub.Close()

	menuRepo := menu.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	driverRepo := driver.NewPostgresRepository(pool)
	staffRepo := staff.NewPostgresRepository(pool)
	notifications := notification.NewService(notification.NewPostgresRepository(pool), hub, logger.Named("notification"))

	g, gctx := errgroup.WithContext(ctx)

	var pub eventPublisher
	if cfg.AMQP.URL == "" {
		logger.Info("no amqp url configured, notifying customers in-process")
		pub = events.NewInlinePublisher(notifications)
	} else {
		amqpPub, closeAMQP, err := startMessaging(gctx, g, pool, notifications)
		if err != nil {
			return err
		}
		defer closeAMQP()
		pub = amqpPub
	}

	orders := order.NewService(orderRepo, menuRepo, order.Options{
		Pricing: order.Pricing{
			TaxRate:     cfg.Pricing.TaxRate,
			DeliveryFee: cfg.Pricing.DeliveryFee,
		},
		Publisher:   pub,
		Broadcaster: hub,
		Drivers:     driverRepo,
		Logger:      logger.Named("order"),
	})
	dispatcher := dispatch.NewService(orderRepo, driverRepo, pub, hub, dispatch.Config{
		Origin:          geo.Point{Lat: cfg.Dispatch.OriginLat, Lng: cfg.Dispatch.OriginLng},
		MaxRadiusMeters: cfg.Dispatch.MaxRadiusMeters,
	}, logger.Named("dispatch"))

	hub.SetLocationHandler(func(ctx context.Context, driverID string, p geo.Point) error {
		_, err := dispatcher.UpdateLocation(ctx, driverID, p)
		return err
	})

	h := httpapi.NewHandler(httpapi.Deps{
		Menu:          menu.NewService(menuRepo),
		Orders:        orders,
		Dispatch:      dispatcher,
		Drivers:       driver.NewService(driverRepo),
		Staff:         staff.NewService(staffRepo),
		Notifications: notifications,
		Logger:        logger.Named("http"),
	})
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(h, httpapi.RouterOptions{
			AllowOrigins: cfg.CORS.AllowOrigins,
			Realtime:     hub,
			Logger:       logger.Named("http"),
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// startMessaging connects to RabbitMQ, starts the notification consumers
// on g and returns the publisher.
func startMessaging(ctx context.Context, g *errgroup.Group, pool *pgxpool.Pool, notifier events.Notifier) (*events.Publisher, func(), error) {
	log := logger.Named("events")

	conn, err := events.Dial(ctx, cfg.AMQP.URL, log)
	if err != nil {
		return nil, nil, err
	}

	pub, err := events.NewPublisher(conn, sequence.NewRepository(pool), events.PublisherOptions{
		PublishEnveloped: cfg.AMQP.PublishEnvelope,
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	dedupRepo := dedup.NewRepository(pool)
	consumers := []*events.Consumer{
		events.NewConsumer(conn, events.OrderStatusChangedRoutingKey,
			events.OrderStatusChangedHandler(pool, dedupRepo, notifier, log, events.OrderStatusNotifierName), log),
		events.NewConsumer(conn, events.DeliveryStatusChangedRoutingKey,
			events.DeliveryStatusChangedHandler(pool, dedupRepo, notifier, log, events.DeliveryStatusNotifierName), log),
	}
	for _, c := range consumers {
		g.Go(func() error {
			return c.Run(ctx)
		})
	}

	cleanup := func() {
		if err := pub.Close(); err != nil {
			log.Warn("publisher close", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			log.Warn("amqp close", zap.Error(err))
		}
	}
	return pub, cleanup, nil
}
