// Package status implements the REST status server: a small read-mostly
// API that dashboards and head units poll for engine state, visible
// hazards, and recent events.
package status

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/roadwatch/roadwatch/internal/interfaces"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the status server reads from
type Dependencies struct {
	Engine     interfaces.EngineStatus
	Feed       interfaces.CatalogReloader
	Subscriber interfaces.EventSubscriber
}

// Controller represents the status server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	statusConfig config.StatusServerData
	deps         Dependencies
	Server       http.Server
	logger       *zap.SugaredLogger
	handlers     *Handlers
	events       *eventBuffer
}

// NewController creates a new status server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.StatusServerData, deps Dependencies, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Engine == nil || deps.Feed == nil || deps.Subscriber == nil {
		return nil, fmt.Errorf("status server requires engine, feed, and subscriber collaborators")
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		statusConfig: sc,
		deps:         deps,
		logger:       logger,
	}

	if sc.ListenAddr == "" {
		logger.Info("status.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}
	if sc.Port == 0 {
		logger.Info("status.port not provided; defaulting to 8090")
		sc.Port = 8090
	}
	if sc.EventBuffer == 0 {
		sc.EventBuffer = 256
	}
	ctrl.statusConfig = sc

	ctrl.events = newEventBuffer(sc.EventBuffer)
	ctrl.handlers = NewHandlers(ctrl)

	router := ctrl.setupRouter()

	var handler http.Handler = router
	if sc.EnableCORS {
		handler = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(router)
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = handler

	return ctrl, nil
}

// StartController starts the status server and the event capture loop
func (c *Controller) StartController() error {
	log.Info("Starting status server controller...")

	c.wg.Add(1)
	go c.captureEvents()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if c.statusConfig.Cert != "" && c.statusConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.statusConfig.Cert, c.statusConfig.Key); err != http.ErrServerClosed {
				log.Errorf("status server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("status server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the status server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// captureEvents drains the event subscription into the ring buffer served
// by the /api/events endpoint.
func (c *Controller) captureEvents() {
	defer c.wg.Done()

	sub := c.deps.Subscriber.Subscribe(c.statusConfig.EventBuffer)
	for {
		select {
		case ev := <-sub:
			c.events.add(ev)
		case <-c.ctx.Done():
			return
		}
	}
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/status", c.handlers.GetStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/hazards/visible", c.handlers.GetVisibleHazards).Methods(http.MethodGet)
	router.HandleFunc("/api/events", c.handlers.GetRecentEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/reload", c.handlers.ReloadCatalog).Methods(http.MethodPost)

	return router
}
