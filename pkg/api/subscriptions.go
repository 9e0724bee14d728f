package api

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/subscription"
	"github.com/telekom/exception-subscriptions/pkg/system"
)

// SubscriptionRepository persists project subscriptions.
type SubscriptionRepository interface {
	Load(ctx context.Context, project string) (*subscription.Set, error)
	Save(ctx context.Context, project string, set *subscription.Set) error
	Delete(ctx context.Context, project string) error
}

// SubscriptionController serves the per-project admin endpoints.
type SubscriptionController struct {
	repo        SubscriptionRepository
	log         *zap.SugaredLogger
	middlewares []gin.HandlerFunc
}

func NewSubscriptionController(repo SubscriptionRepository, log *zap.SugaredLogger, middlewares ...gin.HandlerFunc) *SubscriptionController {
	return &SubscriptionController{
		repo:        repo,
		log:         log.Named("subscriptions"),
		middlewares: middlewares,
	}
}

func (sc *SubscriptionController) BasePath() string {
	return "projects/:project"
}

func (sc *SubscriptionController) Handlers() []gin.HandlerFunc {
	return sc.middlewares
}

func (sc *SubscriptionController) Register(rg *gin.RouterGroup) error {
	rg.GET("subscriptions", sc.handleGet)
	rg.PUT("subscriptions", sc.handlePut)
	rg.DELETE("subscriptions", sc.handleDelete)
	rg.POST("subscriptions/validate", sc.handleValidate)
	rg.GET("matches", sc.handleMatches)
	return nil
}

func project(c *gin.Context) (string, bool) {
	p := strings.TrimSpace(c.Param("project"))
	if p == "" {
		apiresponses.RespondBadRequest(c, "project is required")
		return "", false
	}
	return p, true
}

func (sc *SubscriptionController) handleGet(c *gin.Context) {
	p, ok := project(c)
	if !ok {
		return
	}
	set, err := sc.repo.Load(c.Request.Context(), p)
	if err != nil {
		apiresponses.RespondInternalError(c, "load subscriptions", err, system.GetReqLogger(c, sc.log))
		return
	}
	apiresponses.RespondOK(c, SubscriptionsResponse{
		Project:       p,
		Subscriptions: set.Text(),
		Rules:         rulesOf(set),
	})
}

// parseRequest binds the body and parses the subscription text. It writes the
// error response itself and returns nil on failure.
func (sc *SubscriptionController) parseRequest(c *gin.Context) *subscription.Set {
	var req SubscriptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid request body", err.Error())
		return nil
	}
	set, err := subscription.Parse(req.Subscriptions)
	if err != nil {
		metrics.SubscriptionValidationFailures.Inc()
		system.GetReqLogger(c, sc.log).Debugw("Rejected subscriptions", "error", err)
		apiresponses.RespondValidationError(c, err)
		return nil
	}
	return set
}

func (sc *SubscriptionController) handlePut(c *gin.Context) {
	p, ok := project(c)
	if !ok {
		return
	}
	set := sc.parseRequest(c)
	if set == nil {
		return
	}
	log := system.GetReqLogger(c, sc.log)
	if err := sc.repo.Save(c.Request.Context(), p, set); err != nil {
		apiresponses.RespondInternalError(c, "save subscriptions", err, log)
		return
	}
	log.Infow("Subscriptions updated", "project", p, "rules", set.Len())
	apiresponses.RespondOK(c, SubscriptionsResponse{
		Project:       p,
		Subscriptions: set.Text(),
		Rules:         rulesOf(set),
	})
}

func (sc *SubscriptionController) handleValidate(c *gin.Context) {
	if _, ok := project(c); !ok {
		return
	}
	set := sc.parseRequest(c)
	if set == nil {
		return
	}
	apiresponses.RespondOK(c, ValidateResponse{Valid: true, Rules: rulesOf(set)})
}

func (sc *SubscriptionController) handleDelete(c *gin.Context) {
	p, ok := project(c)
	if !ok {
		return
	}
	if err := sc.repo.Delete(c.Request.Context(), p); err != nil {
		apiresponses.RespondInternalError(c, "delete subscriptions", err, system.GetReqLogger(c, sc.log))
		return
	}
	system.GetReqLogger(c, sc.log).Infow("Subscriptions deleted", "project", p)
	apiresponses.RespondNoContent(c)
}

func (sc *SubscriptionController) handleMatches(c *gin.Context) {
	p, ok := project(c)
	if !ok {
		return
	}
	culprit := c.Query("culprit")
	if culprit == "" {
		apiresponses.RespondBadRequest(c, "culprit query parameter is required")
		return
	}
	set, err := sc.repo.Load(c.Request.Context(), p)
	if err != nil {
		apiresponses.RespondInternalError(c, "load subscriptions", err, system.GetReqLogger(c, sc.log))
		return
	}
	apiresponses.RespondOK(c, MatchesResponse{
		Project:    p,
		Culprit:    culprit,
		Patterns:   nonNil(set.MatchingPatterns(culprit)),
		Recipients: nonNil(set.Match(culprit)),
	})
}
