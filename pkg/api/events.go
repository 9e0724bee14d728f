package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/notification"
	"github.com/telekom/exception-subscriptions/pkg/system"
)

const sourceHTTP = "http"

// EventProcessor runs the notification flow for one event.
type EventProcessor interface {
	PostProcess(ctx context.Context, env event.Envelope) (notification.Result, error)
}

// EventController accepts processed events from the error-tracker host.
type EventController struct {
	processor   EventProcessor
	log         *zap.SugaredLogger
	middlewares []gin.HandlerFunc
}

func NewEventController(processor EventProcessor, log *zap.SugaredLogger, middlewares ...gin.HandlerFunc) *EventController {
	return &EventController{
		processor:   processor,
		log:         log.Named("events"),
		middlewares: middlewares,
	}
}

func (ec *EventController) BasePath() string {
	return "events"
}

func (ec *EventController) Handlers() []gin.HandlerFunc {
	return ec.middlewares
}

func (ec *EventController) Register(rg *gin.RouterGroup) error {
	rg.POST("", ec.handlePostEvent)
	return nil
}

func (ec *EventController) handlePostEvent(c *gin.Context) {
	log := system.GetReqLogger(c, ec.log)

	var env event.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		metrics.EventsRejected.WithLabelValues(sourceHTTP).Inc()
		apiresponses.RespondBadRequestWithDetails(c, "invalid event payload", err.Error())
		return
	}
	if err := env.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues(sourceHTTP).Inc()
		apiresponses.RespondBadRequestWithDetails(c, "invalid event", err.Error())
		return
	}

	metrics.EventsProcessed.WithLabelValues(sourceHTTP).Inc()
	res, err := ec.processor.PostProcess(c.Request.Context(), env)
	if err != nil {
		if errors.Is(err, event.ErrMissingProject) || errors.Is(err, event.ErrMissingEvent) {
			apiresponses.RespondBadRequest(c, err.Error())
			return
		}
		apiresponses.RespondInternalError(c, "process event", err, log.With("project", env.Project.ID, "event", env.Event.ID))
		return
	}

	log.Debugw("Event processed",
		"project", env.Project.ID,
		"event", env.Event.ID,
		"notified", res.Notified,
		"reason", res.Reason)
	apiresponses.RespondAccepted(c, res)
}
