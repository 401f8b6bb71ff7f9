package cachekey

import "time"

// Category is a symbolic retention class. Callers look TTLs up by
// category, never hardcode seconds, so tuning stays centralized here.
type Category string

const (
	UserSession           Category = "USER_SESSION"
	UserProfile           Category = "USER_PROFILE"
	SourceControlRepos    Category = "SOURCE_CONTROL_REPOS"
	SourceControlActivity Category = "SOURCE_CONTROL_ACTIVITY"
	ChatChannels          Category = "CHAT_CHANNELS"
	ChatMessages          Category = "CHAT_MESSAGES"
	ChatUnread            Category = "CHAT_UNREAD"
	AISummaries           Category = "AI_SUMMARY"
	APIFast               Category = "API_FAST"
	APIMedium             Category = "API_MEDIUM"
	APISlow               Category = "API_SLOW"
	StaticAssets          Category = "STATIC_ASSETS"
)

// Tier is an abstract volatility class for callers that do not know the
// exact category.
type Tier string

const (
	TierFast   Tier = "fast"
	TierMedium Tier = "medium"
	TierSlow   Tier = "slow"
)

var categoryTTL = map[Category]time.Duration{
	UserSession:           24 * time.Hour,
	UserProfile:           time.Hour,
	SourceControlRepos:    30 * time.Minute,
	SourceControlActivity: 5 * time.Minute,
	ChatChannels:          15 * time.Minute,
	ChatMessages:          2 * time.Minute,
	ChatUnread:            time.Minute,
	AISummaries:           6 * time.Hour,
	APIFast:               time.Minute,
	APIMedium:             10 * time.Minute,
	APISlow:               time.Hour,
	StaticAssets:          7 * 24 * time.Hour,
}

var tierTTL = map[Tier]time.Duration{
	TierFast:   time.Minute,
	TierMedium: 10 * time.Minute,
	TierSlow:   time.Hour,
}

// TTL returns the retention for a category. Unknown categories fall back
// to the medium tier rather than caching forever.
func TTL(c Category) time.Duration {
	if d, ok := categoryTTL[c]; ok {
		return d
	}
	return tierTTL[TierMedium]
}

// TTLSeconds returns the retention for a category in whole seconds.
func TTLSeconds(c Category) int64 {
	return int64(TTL(c) / time.Second)
}

// TierTTL returns the retention for an abstract tier.
func TierTTL(t Tier) time.Duration {
	if d, ok := tierTTL[t]; ok {
		return d
	}
	return tierTTL[TierMedium]
}
