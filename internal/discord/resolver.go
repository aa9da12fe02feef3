package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/cache"
)

// Lookup lifetimes
const (
	EntityTTL       = 24 * time.Hour
	ThreadTTL       = time.Hour
	MessageTTL      = 12 * time.Hour
	MessageCountTTL = 5 * time.Minute
)

// Result is the outcome of a lookup that may degrade: either a found value
// or Unavailable. Callers pick their own fallback.
type Result[T any] struct {
	value T
	ok    bool
}

// Found wraps a resolved value
func Found[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable is the result of a failed or timed out lookup
func Unavailable[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether it was found
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// OK reports whether the lookup succeeded
func (r Result[T]) OK() bool {
	return r.ok
}

// OrElse returns the value, or fallback when unavailable
func (r Result[T]) OrElse(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// API is the subset of the REST client the resolver depends on
type API interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	GetRole(ctx context.Context, roleID string) (*Role, error)
	GetMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	GetActiveThreads(ctx context.Context) ([]Channel, error)
	GetArchivedThreads(ctx context.Context, channelID string) ([]Channel, error)
	SearchMessageCount(ctx context.Context, channelID string) (int, error)
}

// Resolver serves cached platform lookups. Failures are logged and turned
// into Unavailable, never returned as errors, and are not cached.
type Resolver struct {
	api            API
	cache          *cache.Cache
	forumChannelID string
	log            logrus.FieldLogger
}

// NewResolver creates a resolver; forumChannelID scopes thread listing and
// message counts and may be empty.
func NewResolver(api API, c *cache.Cache, forumChannelID string, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		api:            api,
		cache:          c,
		forumChannelID: forumChannelID,
		log:            log,
	}
}

func lookup[T any](ctx context.Context, r *Resolver, key string, ttl time.Duration, fetch func(context.Context) (T, error)) Result[T] {
	v, err := cache.Cached(ctx, r.cache, key, ttl, fetch)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Discord lookup unavailable")
		return Unavailable[T]()
	}
	return Found(v)
}

// User resolves a user by id
func (r *Resolver) User(ctx context.Context, id string) Result[User] {
	return lookup(ctx, r, "discord:user:"+id, EntityTTL, func(ctx context.Context) (User, error) {
		u, err := r.api.GetUser(ctx, id)
		if err != nil {
			return User{}, err
		}
		return *u, nil
	})
}

// Channel resolves a channel or thread by id
func (r *Resolver) Channel(ctx context.Context, id string) Result[Channel] {
	return lookup(ctx, r, "discord:channel:"+id, EntityTTL, func(ctx context.Context) (Channel, error) {
		ch, err := r.api.GetChannel(ctx, id)
		if err != nil {
			return Channel{}, err
		}
		return *ch, nil
	})
}

// Role resolves a guild role by id
func (r *Resolver) Role(ctx context.Context, id string) Result[Role] {
	return lookup(ctx, r, "discord:role:"+id, EntityTTL, func(ctx context.Context) (Role, error) {
		role, err := r.api.GetRole(ctx, id)
		if err != nil {
			return Role{}, err
		}
		return *role, nil
	})
}

// Message resolves a message body
func (r *Resolver) Message(ctx context.Context, channelID, messageID string) Result[Message] {
	key := fmt.Sprintf("discord:message:%s:%s", channelID, messageID)
	return lookup(ctx, r, key, MessageTTL, func(ctx context.Context) (Message, error) {
		msg, err := r.api.GetMessage(ctx, channelID, messageID)
		if err != nil {
			return Message{}, err
		}
		return *msg, nil
	})
}

// Threads lists the forum's threads, active and archived, deduplicated by
// id. One of the two listings failing still yields the other, but such a
// partial union is served uncached so the next call retries.
func (r *Resolver) Threads(ctx context.Context) Result[[]Channel] {
	key := "discord:threads:" + r.forumChannelID

	var threads []Channel
	if r.cache.Get(ctx, key, &threads) {
		return Found(threads)
	}

	threads, complete, err := r.listThreads(ctx)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Discord lookup unavailable")
		return Unavailable[[]Channel]()
	}
	if !complete {
		r.log.WithField("threads", len(threads)).Warn("Thread listing incomplete, serving uncached")
		return Found(threads)
	}

	if err := r.cache.Set(ctx, key, threads, ThreadTTL); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return Found(threads)
}

// listThreads merges both listings. complete is false when either listing
// failed or stopped early.
func (r *Resolver) listThreads(ctx context.Context) ([]Channel, bool, error) {
	complete := true

	active, activeErr := r.api.GetActiveThreads(ctx)
	if activeErr != nil {
		r.log.WithError(activeErr).Warn("Active thread listing failed")
		complete = false
	}

	var archived []Channel
	var archivedErr error
	if r.forumChannelID != "" {
		archived, archivedErr = r.api.GetArchivedThreads(ctx, r.forumChannelID)
		if archivedErr != nil {
			r.log.WithError(archivedErr).Warn("Archived thread listing failed")
			complete = false
		}
	}

	if activeErr != nil && (r.forumChannelID == "" || (archivedErr != nil && len(archived) == 0)) {
		return nil, false, fmt.Errorf("thread listing failed: %w", activeErr)
	}

	seen := make(map[string]bool, len(active)+len(archived))
	threads := make([]Channel, 0, len(active)+len(archived))
	for _, list := range [][]Channel{active, archived} {
		for _, t := range list {
			if seen[t.ID] || !t.IsThread() {
				continue
			}
			if r.forumChannelID != "" && t.ParentID != r.forumChannelID {
				continue
			}
			seen[t.ID] = true
			threads = append(threads, t)
		}
	}
	return threads, complete, nil
}

// MessageCount reports how many messages the platform's search index holds
// for the forum, or the whole guild when no forum is configured.
func (r *Resolver) MessageCount(ctx context.Context) Result[int] {
	return lookup(ctx, r, "discord:message-count:"+r.forumChannelID, MessageCountTTL, func(ctx context.Context) (int, error) {
		return r.api.SearchMessageCount(ctx, r.forumChannelID)
	})
}
