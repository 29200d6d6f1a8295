package realtime

import (
	"sort"
	"testing"
	"time"
)

func keysOf(keys []subscriptionKey) []subscriptionKey {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Purpose != keys[j].Purpose {
			return keys[i].Purpose < keys[j].Purpose
		}
		return keys[i].ChannelID < keys[j].ChannelID
	})
	return keys
}

func TestReconcileDiff(t *testing.T) {
	desired := map[subscriptionKey]bool{
		{Purpose: purposeNotify, ChannelID: 1}: true,
		{Purpose: purposeNotify, ChannelID: 2}: true,
	}
	current := map[subscriptionKey]bool{
		{Purpose: purposeNotify, ChannelID: 2}: true,
		{Purpose: purposeNotify, ChannelID: 3}: true,
	}

	toClose, toOpen := reconcile(desired, current)

	toClose = keysOf(toClose)
	toOpen = keysOf(toOpen)
	if len(toClose) != 1 || toClose[0].ChannelID != 3 {
		t.Errorf("expected to close channel 3, got %v", toClose)
	}
	if len(toOpen) != 1 || toOpen[0].ChannelID != 1 {
		t.Errorf("expected to open channel 1, got %v", toOpen)
	}
}

func TestReconcileNoChanges(t *testing.T) {
	set := map[subscriptionKey]bool{
		{Purpose: purposeNotify, ChannelID: 1}: true,
	}
	toClose, toOpen := reconcile(set, set)
	if len(toClose) != 0 || len(toOpen) != 0 {
		t.Errorf("expected empty diff, got close=%v open=%v", toClose, toOpen)
	}
}

func TestRetryDelayDoublesAndCaps(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, expected := range want {
		if got := retryDelay(i + 1); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i+1, expected, got)
		}
	}
}

func TestSubscriptionSetOpenIsIdempotent(t *testing.T) {
	source := newFakeSource()
	set := newSubscriptionSet(source)
	key := subscriptionKey{Purpose: purposeNotify, ChannelID: 1}
	spec := openSpec{topic: MessageTopic(1), handler: func(ChangeEvent) {}}

	set.Open(key, spec)
	set.Open(key, spec)

	if got := source.openCount(MessageTopic(1)); got != 1 {
		t.Errorf("expected 1 subscription, got %d", got)
	}
}

func TestSubscriptionSetCloseUnknownKeyIsNoop(t *testing.T) {
	set := newSubscriptionSet(newFakeSource())
	set.Close(subscriptionKey{Purpose: purposeNotify, ChannelID: 99})
}

func TestSubscriptionSetClosePurpose(t *testing.T) {
	source := newFakeSource()
	set := newSubscriptionSet(source)
	handler := func(ChangeEvent) {}

	set.Open(subscriptionKey{Purpose: purposeNotify, ChannelID: 1}, openSpec{topic: MessageTopic(1), handler: handler})
	set.Open(subscriptionKey{Purpose: purposeNotify, ChannelID: 2}, openSpec{topic: MessageTopic(2), handler: handler})
	set.Open(subscriptionKey{Purpose: purposeSyncInsert, ChannelID: 1}, openSpec{topic: MessageTopic(1), handler: handler})

	set.ClosePurpose(purposeNotify)

	keys := set.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 remaining key, got %d", len(keys))
	}
	if !keys[subscriptionKey{Purpose: purposeSyncInsert, ChannelID: 1}] {
		t.Error("expected the sync subscription to survive ClosePurpose(notify)")
	}
	if got := source.openCount(MessageTopic(2)); got != 0 {
		t.Errorf("expected topic 2 unsubscribed, got %d open", got)
	}
}

func TestSubscriptionSetCloseAllRejectsFurtherOpens(t *testing.T) {
	source := newFakeSource()
	set := newSubscriptionSet(source)
	handler := func(ChangeEvent) {}

	set.Open(subscriptionKey{Purpose: purposeNotify, ChannelID: 1}, openSpec{topic: MessageTopic(1), handler: handler})
	set.CloseAll()

	if got := source.openCount(MessageTopic(1)); got != 0 {
		t.Errorf("expected everything unsubscribed, got %d open", got)
	}

	set.Open(subscriptionKey{Purpose: purposeNotify, ChannelID: 2}, openSpec{topic: MessageTopic(2), handler: handler})
	if got := source.openCount(MessageTopic(2)); got != 0 {
		t.Errorf("expected open after CloseAll to be rejected, got %d open", got)
	}
	if got := len(set.Keys()); got != 0 {
		t.Errorf("expected no keys after CloseAll, got %d", got)
	}
}

func TestSuccessfulSubscribeResetsAttempts(t *testing.T) {
	source := newFakeSource()
	set := newSubscriptionSet(source)
	key := subscriptionKey{Purpose: purposeNotify, ChannelID: 1}
	set.Open(key, openSpec{topic: MessageTopic(1), handler: func(ChangeEvent) {}})

	set.mu.Lock()
	set.subs[key].attempts = 3
	set.mu.Unlock()

	set.onStatus(key, StatusSubscribed)

	set.mu.Lock()
	got := set.subs[key].attempts
	set.mu.Unlock()
	if got != 0 {
		t.Errorf("expected attempts reset to 0, got %d", got)
	}
}

func TestFailedSubscribeSchedulesRetryUpToBudget(t *testing.T) {
	source := newFakeSource()
	set := newSubscriptionSet(source)
	key := subscriptionKey{Purpose: purposeNotify, ChannelID: 1}
	set.Open(key, openSpec{topic: MessageTopic(1), handler: func(ChangeEvent) {}})

	for i := 0; i < retryAttempts+2; i++ {
		set.onStatus(key, StatusChannelError)
	}

	set.mu.Lock()
	ms := set.subs[key]
	attempts := ms.attempts
	timer := ms.retry
	set.mu.Unlock()

	if attempts <= retryAttempts {
		t.Errorf("expected attempts beyond the budget, got %d", attempts)
	}
	if timer == nil {
		t.Fatal("expected a retry timer to have been scheduled")
	}
	timer.Stop()
	set.CloseAll()
}
