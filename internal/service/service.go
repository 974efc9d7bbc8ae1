package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cartify/backend/internal/billid"
	"cartify/backend/internal/cache"
	"cartify/backend/internal/domain"
	"cartify/backend/internal/events"
	"cartify/backend/internal/payment"
	"cartify/backend/internal/store"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrMissingCorrelationID = errors.New("payment event has no bill reference")
	ErrPosBillClosed        = errors.New("pos bill already closed")
)

const (
	defaultBillTTL   = 30 * time.Minute
	defaultCurrency  = "usd"
	defaultPageLimit = 10
	maxPageLimit     = 100
	sweepBatch       = 500
	webhookDedupTTL  = 72 * time.Hour

	expireStepTimeout   = 10 * time.Second
	intentCancelTimeout = 10 * time.Second
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ExpiryScheduler arms the one-shot expiry timer of a pending bill.
type ExpiryScheduler interface {
	ScheduleExpiry(id int64, at time.Time)
	Cancel(id int64)
}

type noopScheduler struct{}

func (noopScheduler) ScheduleExpiry(int64, time.Time) {}
func (noopScheduler) Cancel(int64)                    {}

// Options carries the collaborators of Service. Nil fields fall back to
// inert defaults, so a Service built with zero Options still works against
// the store alone.
type Options struct {
	Gateway   payment.Gateway
	Publisher events.Publisher
	Deduper   cache.EventDeduper
	Scheduler ExpiryScheduler
	BillTTL   time.Duration
	Currency  string
	Now       func() time.Time
}

type Service struct {
	repo      store.Repository
	ids       *billid.Generator
	gateway   payment.Gateway
	publisher events.Publisher
	deduper   cache.EventDeduper
	scheduler ExpiryScheduler
	billTTL   time.Duration
	currency  string
	now       func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	svc := &Service{
		repo:      repo,
		ids:       billid.New(repo),
		gateway:   opts.Gateway,
		publisher: opts.Publisher,
		deduper:   opts.Deduper,
		scheduler: opts.Scheduler,
		billTTL:   opts.BillTTL,
		currency:  opts.Currency,
		now:       opts.Now,
	}
	if svc.gateway == nil {
		svc.gateway = payment.Disabled{}
	}
	if svc.publisher == nil {
		svc.publisher = events.NoopPublisher{}
	}
	if svc.deduper == nil {
		svc.deduper = cache.NoopEventDeduper{}
	}
	if svc.scheduler == nil {
		svc.scheduler = noopScheduler{}
	}
	if svc.billTTL <= 0 {
		svc.billTTL = defaultBillTTL
	}
	if svc.currency == "" {
		svc.currency = defaultCurrency
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == 0 {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

func requireRole(ctx context.Context, role string) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != role {
		return domain.Actor{}, fmt.Errorf("%w: %s role required", ErrForbidden, role)
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, bill domain.PosBill, trigger string) {
	env, err := events.ForPosBill(eventType, bill, trigger, s.now())
	if err != nil {
		log.Printf("[events] WARN: encode %s for pos bill %d: %v", eventType, bill.ID, err)
		return
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		log.Printf("[events] WARN: publish %s for pos bill %d: %v", eventType, bill.ID, err)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// summarize prices the lines of one bill. Totals are rounded half away from
// zero to cents.
func summarize(lines []domain.BillingLineDetail) ([]domain.BillingLineView, decimal.Decimal, decimal.Decimal) {
	views := make([]domain.BillingLineView, 0, len(lines))
	total := decimal.Zero
	weight := decimal.Zero
	for _, line := range lines {
		lineWeight := line.UnitWeight.Mul(decimal.NewFromInt(int64(line.Quantity)))
		views = append(views, domain.BillingLineView{
			Product:  line.ProductName,
			Quantity: line.Quantity,
			Price:    money(line.UnitPrice),
			Total:    money(line.TotalPrice),
			Weight:   money(lineWeight),
		})
		total = total.Add(line.TotalPrice)
		weight = weight.Add(lineWeight)
	}
	return views, total.Round(2), weight.Round(2)
}

func ownsAll(lines []domain.BillingLineDetail, userID int64) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if line.OwnerUserID != userID {
			return false
		}
	}
	return true
}

func pageWindow(page int, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total int, limit int) int {
	if total == 0 || limit < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
