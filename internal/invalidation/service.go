package invalidation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"unifiedhq/internal/audit"
	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/observability"
	"unifiedhq/internal/store"
)

// MembershipResolver answers which identities a context event affects,
// e.g. the members of a chat channel. Production deployments inject a
// resolver backed by their membership data.
type MembershipResolver interface {
	AffectedUsers(ctx context.Context, domain, contextID string) ([]string, error)
}

// Service computes the key sets for each invalidation operation and
// removes them through the store. Every operation is idempotent:
// invalidating an absent key is a zero-count no-op, and repeating an
// invalidation is always safe.
type Service struct {
	store    store.Store
	resolver MembershipResolver
	trail    *audit.Trail
	metrics  *metrics.Collector
	log      *slog.Logger
}

// NewService creates an invalidation service. resolver, trail and
// collector may each be nil.
func NewService(s store.Store, resolver MembershipResolver, trail *audit.Trail, collector *metrics.Collector) *Service {
	return &Service{
		store:    s,
		resolver: resolver,
		trail:    trail,
		metrics:  collector,
		log:      logger.WithComponent("invalidation"),
	}
}

// InvalidateTags removes every key matching the pattern each tag
// resolves to. A tag is "<domain>" or "<domain>:<scope>".
func (s *Service) InvalidateTags(ctx context.Context, req TagsRequest) int64 {
	ctx, span := observability.StartSpan(ctx, "invalidation.tags", strings.Join(req.Tags, ","))
	defer span.End()

	var removed int64
	for _, tag := range req.Tags {
		pattern := tagPattern(tag)
		removed += s.deletePattern(ctx, pattern)
	}
	s.record(TypeTags, strings.Join(req.Tags, ","), removed)
	return removed
}

// InvalidatePaths maps URL-like paths to domain key patterns and
// removes the matches.
func (s *Service) InvalidatePaths(ctx context.Context, req PathsRequest) int64 {
	ctx, span := observability.StartSpan(ctx, "invalidation.paths", strings.Join(req.Paths, ","))
	defer span.End()

	var removed int64
	for _, p := range req.Paths {
		removed += s.deletePattern(ctx, pathPattern(p))
	}
	s.record(TypePaths, strings.Join(req.Paths, ","), removed)
	return removed
}

// InvalidateRealtime removes only the narrowly-scoped keys for one
// user and context, without a broad sweep.
func (s *Service) InvalidateRealtime(ctx context.Context, req RealtimeRequest) int64 {
	ctx, span := observability.StartSpan(ctx, "invalidation.realtime", req.Domain+"/"+req.UserID)
	defer span.End()

	removed := s.realtime(ctx, req)
	s.record(TypeRealtime, req.Domain+"/"+req.UserID, removed)
	return removed
}

// InvalidateSmart fans a realtime invalidation out to the initiating
// user and every affected identity.
func (s *Service) InvalidateSmart(ctx context.Context, req SmartRequest) int64 {
	ctx, span := observability.StartSpan(ctx, "invalidation.smart", req.Domain+"/"+req.ContextID)
	defer span.End()

	affected := req.AffectedUsers
	if len(affected) == 0 && s.resolver != nil {
		resolved, err := s.resolver.AffectedUsers(ctx, req.Domain, req.ContextID)
		if err != nil {
			s.log.Warn("membership resolution failed, invalidating initiator only",
				"domain", req.Domain, "context", req.ContextID, "error", err.Error())
		} else {
			affected = resolved
		}
	}

	seen := map[string]bool{req.UserID: true}
	removed := s.realtime(ctx, RealtimeRequest{Domain: req.Domain, UserID: req.UserID, ContextID: req.ContextID})
	for _, user := range affected {
		if user == "" || seen[user] {
			continue
		}
		seen[user] = true
		removed += s.realtime(ctx, RealtimeRequest{Domain: req.Domain, UserID: user, ContextID: req.ContextID})
	}

	s.record(TypeSmart, req.Domain+"/"+req.ContextID, removed)
	return removed
}

// InvalidateBatch applies every item and returns one aggregated count.
func (s *Service) InvalidateBatch(ctx context.Context, req BatchRequest) int64 {
	ctx, span := observability.StartSpan(ctx, "invalidation.batch", "")
	defer span.End()

	var removed int64
	for _, item := range req.Items {
		removed += s.realtime(ctx, item)
	}
	s.record(TypeBatch, "", removed)
	return removed
}

func (s *Service) realtime(ctx context.Context, req RealtimeRequest) int64 {
	keys, patterns := realtimeTargets(req)
	removed := s.store.Del(ctx, keys...)
	for _, p := range patterns {
		removed += s.deletePattern(ctx, p)
	}
	return removed
}

// realtimeTargets lists the concrete keys one user+context event
// touches, plus patterns sweeping sub-keyed variants (paginated message
// lists and the like) under the context-scoped keys.
func realtimeTargets(req RealtimeRequest) (keys, patterns []string) {
	domain := strings.ToLower(req.Domain)
	switch domain {
	case cachekey.DomainChat:
		keys = []string{
			cachekey.Chat(req.UserID, "channels"),
			cachekey.Chat(req.UserID, "unread"),
		}
		if req.ContextID != "" {
			messages := cachekey.Chat(req.UserID, "messages", req.ContextID)
			keys = append(keys, messages, cachekey.Chat(req.UserID, "unread", req.ContextID))
			patterns = append(patterns, messages+":*")
		}
	case cachekey.DomainSourceControl:
		keys = []string{
			cachekey.SourceControl(req.UserID, "repos"),
			cachekey.SourceControl(req.UserID, "activity"),
		}
		if req.ContextID != "" {
			activity := cachekey.SourceControl(req.UserID, "activity", req.ContextID)
			keys = append(keys, activity)
			patterns = append(patterns, activity+":*")
		}
	case cachekey.DomainAISummary:
		keys = []string{cachekey.AISummary(req.UserID, "list")}
		if req.ContextID != "" {
			summary := cachekey.AISummary(req.UserID, "summary", req.ContextID)
			keys = append(keys, summary)
			patterns = append(patterns, summary+":*")
		}
	default:
		keys = []string{cachekey.Generate(domain, req.UserID)}
		if req.ContextID != "" {
			key := cachekey.Generate(domain, req.UserID, req.ContextID)
			keys = append(keys, key)
			patterns = append(patterns, key+":*")
		}
	}
	return keys, patterns
}

// tagPattern resolves a tag to a key pattern. "<domain>" covers the
// whole domain, "<domain>:<scope>" one scope within it.
func tagPattern(tag string) string {
	parts := strings.SplitN(tag, ":", 2)
	if len(parts) == 2 {
		return cachekey.Pattern(parts[0], parts[1])
	}
	return cachekey.Pattern(parts[0], "")
}

// pathPattern maps an application path to its domain key pattern.
func pathPattern(p string) string {
	p = strings.TrimSuffix(p, "/")
	switch {
	case p == "" || p == "/dashboard":
		return cachekey.Pattern(cachekey.DomainAPI, "dashboard")
	case strings.HasPrefix(p, "/repos"):
		return cachekey.Pattern(cachekey.DomainSourceControl, "")
	case strings.HasPrefix(p, "/chat"):
		return cachekey.Pattern(cachekey.DomainChat, "")
	case strings.HasPrefix(p, "/summaries"):
		return cachekey.Pattern(cachekey.DomainAISummary, "")
	case strings.HasPrefix(p, "/api/"):
		return cachekey.Pattern(cachekey.DomainAPI, strings.TrimPrefix(p, "/api/"))
	default:
		return cachekey.Pattern(cachekey.DomainAPI, strings.TrimPrefix(p, "/"))
	}
}

func (s *Service) deletePattern(ctx context.Context, pattern string) int64 {
	keys := s.store.KeysByPattern(ctx, pattern)
	if len(keys) == 0 {
		return 0
	}
	return s.store.Del(ctx, keys...)
}

func (s *Service) record(op, target string, removed int64) {
	if s.metrics != nil {
		s.metrics.RecordInvalidation(removed)
	}
	if s.trail != nil {
		s.trail.Add(audit.Record{
			Timestamp: timeNow(),
			ID:        uuid.NewString(),
			Operation: op,
			Target:    target,
			Removed:   removed,
		})
	}
	s.log.Debug("invalidated", "op", op, "target", target, "removed", removed)
}
