// Package invalidation removes cache entries by tag, path, realtime
// event, smart fan-out or batch, across the source-control, chat and
// AI-summary domains.
package invalidation

import (
	"errors"
	"fmt"
)

// Request type tokens as they appear on the purge surface.
const (
	TypeTags     = "tags"
	TypePaths    = "paths"
	TypeRealtime = "realtime"
	TypeSmart    = "smart"
	TypeBatch    = "batch"
)

// Validation errors. These are client errors: a malformed request is
// rejected before any store call.
var (
	ErrNoTags    = errors.New("invalidation: at least one tag is required")
	ErrNoPaths   = errors.New("invalidation: at least one path is required")
	ErrNoDomain  = errors.New("invalidation: domain is required")
	ErrNoUser    = errors.New("invalidation: userId is required")
	ErrEmptyItem = errors.New("invalidation: batch contains an invalid item")
	ErrNoItems   = errors.New("invalidation: batch requires at least one item")
)

// TagsRequest invalidates every key matching the patterns a tag
// resolves to.
type TagsRequest struct {
	Tags []string
}

// NewTagsRequest validates a tag invalidation.
func NewTagsRequest(tags []string) (TagsRequest, error) {
	if len(tags) == 0 {
		return TagsRequest{}, ErrNoTags
	}
	for _, t := range tags {
		if t == "" {
			return TagsRequest{}, ErrNoTags
		}
	}
	return TagsRequest{Tags: tags}, nil
}

// PathsRequest invalidates the domain keys mapped from URL-like paths.
type PathsRequest struct {
	Paths []string
}

// NewPathsRequest validates a path invalidation.
func NewPathsRequest(paths []string) (PathsRequest, error) {
	if len(paths) == 0 {
		return PathsRequest{}, ErrNoPaths
	}
	for _, p := range paths {
		if p == "" {
			return PathsRequest{}, ErrNoPaths
		}
	}
	return PathsRequest{Paths: paths}, nil
}

// RealtimeRequest narrowly invalidates one user's keys for one context,
// e.g. a new chat message in a channel.
type RealtimeRequest struct {
	Domain    string
	UserID    string
	ContextID string
}

// NewRealtimeRequest validates a realtime invalidation.
func NewRealtimeRequest(domain, userID, contextID string) (RealtimeRequest, error) {
	if domain == "" {
		return RealtimeRequest{}, ErrNoDomain
	}
	if userID == "" {
		return RealtimeRequest{}, ErrNoUser
	}
	return RealtimeRequest{Domain: domain, UserID: userID, ContextID: contextID}, nil
}

// SmartRequest fans a realtime invalidation out to every affected
// identity. It is the only operation that invalidates on behalf of
// users other than the initiating actor.
type SmartRequest struct {
	Domain    string
	UserID    string
	ContextID string
	// AffectedUsers may be supplied by the caller; when empty the
	// service asks its MembershipResolver.
	AffectedUsers []string
}

// NewSmartRequest validates a smart invalidation.
func NewSmartRequest(domain, userID, contextID string, affected []string) (SmartRequest, error) {
	if domain == "" {
		return SmartRequest{}, ErrNoDomain
	}
	if userID == "" {
		return SmartRequest{}, ErrNoUser
	}
	return SmartRequest{Domain: domain, UserID: userID, ContextID: contextID, AffectedUsers: affected}, nil
}

// BatchRequest applies many realtime invalidations with one aggregated
// count, used when a webhook event affects many users at once.
type BatchRequest struct {
	Items []RealtimeRequest
}

// NewBatchRequest validates a batch invalidation.
func NewBatchRequest(items []RealtimeRequest) (BatchRequest, error) {
	if len(items) == 0 {
		return BatchRequest{}, ErrNoItems
	}
	for i, item := range items {
		if item.Domain == "" || item.UserID == "" {
			return BatchRequest{}, fmt.Errorf("%w: item %d", ErrEmptyItem, i)
		}
	}
	return BatchRequest{Items: items}, nil
}
