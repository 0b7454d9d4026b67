package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"web-analytics/backend/internal/analytics/domain"
	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/cache"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/metrics"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/policy/engine"
	"web-analytics/backend/internal/telemetry"
	"web-analytics/backend/internal/validation"
)

// invalidateTimeout bounds the post-ingestion cache invalidation.
const invalidateTimeout = time.Second

// ErrAppNotFound is returned when an app_id filter names an app the owner cannot see.
var ErrAppNotFound = errors.New("app not found")

var tracer = otel.Tracer("web-analytics/backend/internal/analytics")

// EventRepo is the minimal analytics repository needed by the service.
type EventRepo interface {
	Create(ctx context.Context, e *domain.Event) error
	Summary(ctx context.Context, f domain.SummaryFilter) (*domain.Summary, error)
	UserStats(ctx context.Context, appIDs []string, userID string) (*domain.UserStats, error)
}

// AppRepo is the minimal app repository needed by the service.
type AppRepo interface {
	GetByID(ctx context.Context, id string) (*appdomain.App, error)
	ListIDsByOwner(ctx context.Context, userID string) ([]string, error)
}

// ClientMetadata is the client-supplied part of an event's metadata. Other keys are dropped.
type ClientMetadata struct {
	Browser    string `json:"browser" validate:"omitempty,max=100"`
	OS         string `json:"os" validate:"omitempty,max=100"`
	ScreenSize string `json:"screenSize" validate:"omitempty,max=50"`
}

// CollectInput is the body of POST /analytics/collect. Unknown fields are ignored.
type CollectInput struct {
	Event     string          `json:"event" validate:"required,min=1,max=255"`
	URL       string          `json:"url" validate:"omitempty,uri"`
	Referrer  string          `json:"referrer" validate:"omitempty,uri"`
	Device    string          `json:"device" validate:"omitempty,oneof=mobile desktop tablet"`
	IPAddress string          `json:"ipAddress" validate:"omitempty,ip"`
	UserID    string          `json:"userId" validate:"omitempty,max=255"`
	SessionID string          `json:"sessionId" validate:"omitempty,max=255"`
	Timestamp string          `json:"timestamp" validate:"omitempty,iso8601"`
	Metadata  *ClientMetadata `json:"metadata"`
}

// ClientInfo is what the transport knows about the caller.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// SummaryQuery is the query string of GET /analytics/event-summary.
type SummaryQuery struct {
	Event     string `query:"event" validate:"required,max=255"`
	StartDate string `query:"startDate" validate:"omitempty,iso8601"`
	EndDate   string `query:"endDate" validate:"omitempty,iso8601"`
	AppID     string `query:"app_id" validate:"omitempty,uuid"`
}

// UserStatsQuery is the query string of GET /analytics/user-stats.
type UserStatsQuery struct {
	UserID string `query:"userId" validate:"required,max=255"`
}

// Service ingests events and answers cached aggregate queries.
type Service struct {
	events  EventRepo
	apps    AppRepo
	authz   engine.Authorizer
	cache   *cache.Cache
	emitter telemetry.EventEmitter
	now     func() time.Time
}

// NewService returns a Service. A nil cache behaves as disabled; a nil emitter drops telemetry.
func NewService(events EventRepo, apps AppRepo, authz engine.Authorizer, c *cache.Cache, emitter telemetry.EventEmitter) *Service {
	if c == nil {
		c = cache.Disabled()
	}
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &Service{events: events, apps: apps, authz: authz, cache: c, emitter: emitter, now: time.Now}
}

// Collect validates and persists one event for app, then invalidates the aggregates it may have changed.
// Invalidation failures are logged and counted, never returned.
func (s *Service) Collect(ctx context.Context, app principal.App, in CollectInput, client ClientInfo) (string, error) {
	ctx, span := tracer.Start(ctx, "analytics.Collect", trace.WithAttributes(attribute.String("app.id", app.AppID)))
	defer span.End()

	in.Event = strings.TrimSpace(in.Event)
	if verr := validation.Struct(in); verr != nil {
		return "", verr
	}
	now := s.now().UTC()
	ts := now
	if in.Timestamp != "" {
		t, _, err := validation.ParseTimestamp(in.Timestamp)
		if err != nil {
			return "", validation.NewError("timestamp", "timestamp must be a valid ISO 8601 date")
		}
		ts = t
	}

	agent := domain.ParseUserAgent(client.UserAgent)
	hasAgent := strings.TrimSpace(client.UserAgent) != ""
	device := in.Device
	if device == "" {
		device = domain.ClassifyDevice(agent.Family)
	}
	ip := in.IPAddress
	if ip == "" {
		ip = client.IP
	}
	var clientMeta map[string]string
	if in.Metadata != nil {
		clientMeta = map[string]string{
			domain.MetaBrowser:    in.Metadata.Browser,
			domain.MetaOS:         in.Metadata.OS,
			domain.MetaScreenSize: in.Metadata.ScreenSize,
		}
	}

	ev := &domain.Event{
		ID:        uuid.New().String(),
		AppID:     app.AppID,
		Event:     in.Event,
		URL:       in.URL,
		Referrer:  in.Referrer,
		Device:    device,
		IPAddress: ip,
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Timestamp: ts,
		Metadata:  domain.MergeMetadata(clientMeta, agent, hasAgent),
		CreatedAt: now,
	}
	if err := s.events.Create(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist event")
		return "", fmt.Errorf("persist event: %w", err)
	}
	metrics.EventsCollected.WithLabelValues(ev.Device).Inc()

	s.invalidate(ctx, app, ev)
	telemetry.EmitAsync(ctx, s.emitter, &telemetry.Event{
		EventID:   ev.ID,
		AppID:     ev.AppID,
		OwnerID:   app.OwnerID,
		Event:     ev.Event,
		Device:    ev.Device,
		URL:       ev.URL,
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
		Metadata:  ev.Metadata,
		Source:    telemetry.SourceCollect,
		Timestamp: ev.Timestamp,
	})
	return ev.ID, nil
}

// invalidate drops every cached aggregate the new event can change: the event's summaries in the app
// scope and in the owner scope (all date ranges), and the owner's stats for the event's user.
func (s *Service) invalidate(ctx context.Context, app principal.App, ev *domain.Event) {
	if !s.cache.Enabled() {
		return
	}
	groups := []string{summaryEventGroup(scopeApp(app.AppID), ev.Event)}
	var keys []string
	if app.OwnerID != "" {
		groups = append(groups, summaryEventGroup(scopeOwner(app.OwnerID), ev.Event))
		if ev.UserID != "" {
			keys = append(keys, userStatsKey(app.OwnerID, ev.UserID))
		}
	}
	invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.cache.Invalidate(invCtx, keys, groups); err != nil {
		metrics.CacheInvalidationErrors.Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("app_id", app.AppID).
			Str("event", ev.Event).
			Strs("keys", keys).
			Strs("groups", groups).
			Msg("analytics: cache invalidation failed, aggregates may be stale until TTL")
	}
}

// EventSummary returns the summary for q over the owner's apps (or the one app in q.AppID) and whether
// it was served from cache.
func (s *Service) EventSummary(ctx context.Context, owner principal.Owner, q SummaryQuery) (*domain.Summary, bool, error) {
	ctx, span := tracer.Start(ctx, "analytics.EventSummary")
	defer span.End()

	q.Event = strings.TrimSpace(q.Event)
	if verr := validation.Struct(q); verr != nil {
		return nil, false, verr
	}
	start, end, err := parseRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, false, err
	}

	var (
		scope  string
		appIDs []string
	)
	if q.AppID != "" {
		if err := s.authorizeApp(ctx, owner, q.AppID); err != nil {
			return nil, false, err
		}
		scope, appIDs = scopeApp(q.AppID), []string{q.AppID}
	} else {
		ids, err := s.apps.ListIDsByOwner(ctx, owner.UserID)
		if err != nil {
			return nil, false, err
		}
		if len(ids) == 0 {
			return domain.EmptySummary(q.Event), false, nil
		}
		scope, appIDs = scopeOwner(owner.UserID), ids
	}

	key := summaryKey(scope, q.Event, start, end)
	var cached domain.Summary
	res := s.cache.GetJSON(ctx, key, &cached)
	metrics.RecordCacheLookup("event_summary", res.String())
	span.SetAttributes(attribute.String("cache.result", res.String()))
	if res == cache.Hit {
		return &cached, true, nil
	}

	sum, err := s.events.Summary(ctx, domain.SummaryFilter{AppIDs: appIDs, Event: q.Event, Start: start, End: end})
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("event summary: %w", err)
	}
	s.store(ctx, key, sum, res, summaryEventGroup(scope, q.Event))
	return sum, false, nil
}

// UserStats returns the stats of one external user id across the owner's apps.
func (s *Service) UserStats(ctx context.Context, owner principal.Owner, q UserStatsQuery) (*domain.UserStats, bool, error) {
	ctx, span := tracer.Start(ctx, "analytics.UserStats")
	defer span.End()

	if verr := validation.Struct(q); verr != nil {
		return nil, false, verr
	}
	ids, err := s.apps.ListIDsByOwner(ctx, owner.UserID)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 {
		return domain.EmptyUserStats(q.UserID), false, nil
	}

	key := userStatsKey(owner.UserID, q.UserID)
	var cached domain.UserStats
	res := s.cache.GetJSON(ctx, key, &cached)
	metrics.RecordCacheLookup("user_stats", res.String())
	span.SetAttributes(attribute.String("cache.result", res.String()))
	if res == cache.Hit {
		return &cached, true, nil
	}

	stats, err := s.events.UserStats(ctx, ids, q.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("user stats: %w", err)
	}
	s.store(ctx, key, stats, res)
	return stats, false, nil
}

// store writes a computed aggregate back, as a member of groups, unless the cache was unavailable for the read.
func (s *Service) store(ctx context.Context, key string, v any, res cache.Result, groups ...string) {
	if res == cache.Unavailable {
		return
	}
	if err := s.cache.SetJSON(ctx, key, v, groups...); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("analytics: cache write skipped")
	}
}

func (s *Service) authorizeApp(ctx context.Context, owner principal.Owner, appID string) error {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrAppNotFound
	}
	ok, err := s.authz.Allow(ctx, engine.Request{
		PrincipalUserID: owner.UserID,
		Action:          engine.ActionQueryEvents,
		ResourceType:    "app",
		ResourceID:      app.ID,
		ResourceOwnerID: app.UserID,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAppNotFound
	}
	return nil
}

// parseRange parses inclusive bounds. A date-only end covers that whole day.
func parseRange(startDate, endDate string) (start, end *time.Time, err error) {
	if startDate != "" {
		t, _, perr := validation.ParseTimestamp(startDate)
		if perr != nil {
			return nil, nil, validation.NewError("startDate", "startDate must be a valid ISO 8601 date")
		}
		start = &t
	}
	if endDate != "" {
		t, dateOnly, perr := validation.ParseTimestamp(endDate)
		if perr != nil {
			return nil, nil, validation.NewError("endDate", "endDate must be a valid ISO 8601 date")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Microsecond)
		}
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, validation.NewError("endDate", "endDate must not be before startDate")
	}
	return start, end, nil
}
