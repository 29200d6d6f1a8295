package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Subscription purposes. A logical subscription is keyed (purpose, channel)
// so the same one is never opened twice.
const (
	purposeMembership  = "membership"
	purposeNotify      = "notify"
	purposeSyncInsert  = "sync-insert"
	purposeSyncChanges = "sync-changes"
)

type subscriptionKey struct {
	Purpose   string
	ChannelID int64
}

// reconcile diffs the desired key set against the currently open one.
// Everything open but no longer desired closes; everything desired but not
// open opens.
func reconcile(desired, current map[subscriptionKey]bool) (toClose, toOpen []subscriptionKey) {
	for key := range current {
		if !desired[key] {
			toClose = append(toClose, key)
		}
	}
	for key := range desired {
		if !current[key] {
			toOpen = append(toOpen, key)
		}
	}
	return toClose, toOpen
}

// Retry policy for failed subscriptions: bounded exponential backoff,
// 1s doubling up to 30s, five attempts, counter reset on success.
const (
	retryBase     = time.Second
	retryCap      = 30 * time.Second
	retryAttempts = 5
)

func retryDelay(attempt int) time.Duration {
	d := retryBase << (attempt - 1)
	if d > retryCap || d <= 0 {
		return retryCap
	}
	return d
}

// openSpec describes how to (re)open a logical subscription.
type openSpec struct {
	topic   string
	filter  Filter
	handler Handler
}

type managedSub struct {
	spec     openSpec
	handle   Handle
	attempts int
	retry    *time.Timer
}

// subscriptionSet is the single authority owning every live subscription of
// a session. Open and Close are idempotent per key; failed subscriptions are
// reopened with backoff until the attempt budget runs out or the key is
// closed.
type subscriptionSet struct {
	source Source

	mu     sync.Mutex
	subs   map[subscriptionKey]*managedSub
	closed bool
}

func newSubscriptionSet(source Source) *subscriptionSet {
	return &subscriptionSet{
		source: source,
		subs:   make(map[subscriptionKey]*managedSub),
	}
}

// Open opens the keyed subscription if it is not already open.
func (ss *subscriptionSet) Open(key subscriptionKey, spec openSpec) {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return
	}
	if _, exists := ss.subs[key]; exists {
		ss.mu.Unlock()
		return
	}
	ms := &managedSub{spec: spec}
	ss.subs[key] = ms
	ss.mu.Unlock()

	// Subscribe outside the lock: a source may report status synchronously.
	handle := ss.subscribe(key, spec)

	ss.mu.Lock()
	if current, ok := ss.subs[key]; ok && current == ms {
		ms.handle = handle
		ss.mu.Unlock()
		return
	}
	// Closed while subscribing.
	ss.mu.Unlock()
	handle.Unsubscribe()
}

func (ss *subscriptionSet) subscribe(key subscriptionKey, spec openSpec) Handle {
	return ss.source.Subscribe(context.Background(), spec.topic, spec.filter, spec.handler, func(status Status) {
		ss.onStatus(key, status)
	})
}

func (ss *subscriptionSet) onStatus(key subscriptionKey, status Status) {
	switch status {
	case StatusSubscribed:
		ss.mu.Lock()
		if ms, ok := ss.subs[key]; ok {
			ms.attempts = 0
		}
		ss.mu.Unlock()

	case StatusChannelError, StatusTimedOut:
		// Not receiving events; schedule a reopen.
		ss.scheduleRetry(key, status)
	}
}

func (ss *subscriptionSet) scheduleRetry(key subscriptionKey, status Status) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ms, ok := ss.subs[key]
	if !ok || ss.closed {
		return
	}
	ms.attempts++
	if ms.attempts > retryAttempts {
		slog.Error("subscription retry budget exhausted",
			"purpose", key.Purpose, "channelID", key.ChannelID, "status", status)
		return
	}

	delay := retryDelay(ms.attempts)
	slog.Warn("subscription failed, retrying",
		"purpose", key.Purpose, "channelID", key.ChannelID,
		"status", status, "attempt", ms.attempts, "delay", delay)

	ms.retry = time.AfterFunc(delay, func() { ss.reopen(key) })
}

func (ss *subscriptionSet) reopen(key subscriptionKey) {
	ss.mu.Lock()
	ms, ok := ss.subs[key]
	if !ok || ss.closed {
		ss.mu.Unlock()
		return
	}
	old := ms.handle
	spec := ms.spec
	ss.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	handle := ss.subscribe(key, spec)

	ss.mu.Lock()
	if current, ok := ss.subs[key]; ok && current == ms {
		ms.handle = handle
		ss.mu.Unlock()
		return
	}
	ss.mu.Unlock()
	handle.Unsubscribe()
}

// Close tears down the keyed subscription. Closing an unknown key is a
// no-op.
func (ss *subscriptionSet) Close(key subscriptionKey) {
	ss.mu.Lock()
	ms, ok := ss.subs[key]
	if ok {
		delete(ss.subs, key)
	}
	ss.mu.Unlock()

	if !ok {
		return
	}
	if ms.retry != nil {
		ms.retry.Stop()
	}
	if ms.handle != nil {
		ms.handle.Unsubscribe()
	}
}

// ClosePurpose tears down every subscription with the given purpose.
func (ss *subscriptionSet) ClosePurpose(purpose string) {
	ss.mu.Lock()
	var keys []subscriptionKey
	for key := range ss.subs {
		if key.Purpose == purpose {
			keys = append(keys, key)
		}
	}
	ss.mu.Unlock()

	for _, key := range keys {
		ss.Close(key)
	}
}

// Keys returns a snapshot of the open subscription keys.
func (ss *subscriptionSet) Keys() map[subscriptionKey]bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	keys := make(map[subscriptionKey]bool, len(ss.subs))
	for key := range ss.subs {
		keys[key] = true
	}
	return keys
}

// CloseAll tears down everything and rejects further opens. Used on session
// close and loss of authentication.
func (ss *subscriptionSet) CloseAll() {
	ss.mu.Lock()
	ss.closed = true
	subs := ss.subs
	ss.subs = make(map[subscriptionKey]*managedSub)
	ss.mu.Unlock()

	for _, ms := range subs {
		if ms.retry != nil {
			ms.retry.Stop()
		}
		if ms.handle != nil {
			ms.handle.Unsubscribe()
		}
	}
}
