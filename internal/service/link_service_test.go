package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/events"
	"github.com/heartlog/rehab-api/internal/line"
)

type linkFixture struct {
	svc        *LinkService
	family     *FamilyService
	users      *fakeUsers
	members    *fakeFamily
	selfLinks  *fakeSelfLinks
	messenger  *fakeMessenger
	deduper    *fakeDeduper
	dispatcher *recordingDispatcher
	now        time.Time
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()
	users := newFakeUsers()
	users.add(domain.User{ID: "patient-1", DisplayName: "Hana", Role: domain.RolePatient})
	members := newFakeFamily(users)
	selfLinks := newFakeSelfLinks(users)
	messenger := &fakeMessenger{}
	deduper := &fakeDeduper{}
	dispatcher := &recordingDispatcher{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	cfg := config.LinkCodeConfig{TTLHours: 72, Length: 8}
	svc := NewLinkService(cfg, LinkDependencies{
		FamilyRepo:   members,
		LineLinkRepo: selfLinks,
		UserRepo:     users,
		Messenger:    messenger,
		Deduper:      deduper,
		Dispatcher:   dispatcher,
	}, zap.NewNop())
	svc.now = fixedNow(now)

	family := NewFamilyService(members, cfg)
	family.now = fixedNow(now)

	return &linkFixture{
		svc: svc, family: family, users: users, members: members, selfLinks: selfLinks,
		messenger: messenger, deduper: deduper, dispatcher: dispatcher, now: now,
	}
}

func textEvent(id, userID, replyToken, text string) line.Event {
	return line.Event{
		Type:           line.EventMessage,
		WebhookEventID: id,
		ReplyToken:     replyToken,
		Source:         line.Source{Type: "user", UserID: userID},
		Message:        &line.Message{ID: "m-" + id, Type: line.MessageText, Text: text},
	}
}

func (f *linkFixture) invite(t *testing.T, name string) *domain.FamilyMember {
	t.Helper()
	member, err := f.family.Create(context.Background(), "patient-1", FamilyMemberInput{Name: name, NotifyEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, member.LinkCode)
	return member
}

func TestLinkService_FamilyCodeViaWebhook(t *testing.T) {
	f := newLinkFixture(t)
	member := f.invite(t, "Ken")

	payload := &line.WebhookPayload{Events: []line.Event{
		textEvent("ev-1", "U-ken", "rt-1", "  "+strings.ToLower(*member.LinkCode)+"\n"),
	}}
	summary := f.svc.ProcessWebhook(context.Background(), payload)
	assert.Equal(t, WebhookSummary{Processed: 1}, summary)

	linked, err := f.members.GetByID(context.Background(), "patient-1", member.ID)
	require.NoError(t, err)
	require.True(t, linked.Linked())
	assert.Equal(t, "U-ken", *linked.LineUserID)
	assert.Nil(t, linked.LinkCode, "code is single use")

	sent := f.messenger.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "rt-1", sent[0].target)
	assert.Contains(t, sent[0].text, "Ken")
	assert.Contains(t, sent[0].text, "Hana")

	require.Len(t, f.dispatcher.published, 1)
	assert.Equal(t, events.EventFamilyLinked, f.dispatcher.published[0].Type)
	assert.Equal(t, "patient-1", f.dispatcher.published[0].PatientID)
}

func TestLinkService_ConcurrentConsumersLinkOnce(t *testing.T) {
	f := newLinkFixture(t)
	member := f.invite(t, "Ken")

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan *domain.LinkResult, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.svc.Consume(context.Background(), *member.LinkCode, fmt.Sprintf("U-%d", i))
			assert.NoError(t, err)
			results <- result
		}(i)
	}
	wg.Wait()
	close(results)

	applied := 0
	for result := range results {
		if result != nil {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
}

func TestLinkService_CodeReuseAndExpiry(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	member := f.invite(t, "Ken")
	code := *member.LinkCode

	first, err := f.svc.Consume(ctx, code, "U-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := f.svc.Consume(ctx, code, "U-2")
	require.NoError(t, err)
	assert.Nil(t, again)

	expiring := f.invite(t, "Yumi")
	f.svc.now = fixedNow(f.now.Add(73 * time.Hour))
	expired, err := f.svc.Consume(ctx, *expiring.LinkCode, "U-3")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestLinkService_SameLineUserTwiceForPatient(t *testing.T) {
	f := newLinkFixture(t)
	first := f.invite(t, "Ken")
	second := f.invite(t, "Ken again")

	summary := f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{
		textEvent("ev-1", "U-ken", "rt-1", *first.LinkCode),
		textEvent("ev-2", "U-ken", "rt-2", *second.LinkCode),
	}})
	assert.Equal(t, 2, summary.Processed)

	sent := f.messenger.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, msgAlreadyLinked, sent[1].text)

	stillOpen, err := f.members.GetByID(context.Background(), "patient-1", second.ID)
	require.NoError(t, err)
	assert.False(t, stillOpen.Linked())
}

func TestLinkService_SelfLink(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()

	link, err := f.svc.IssueSelfLinkCode(ctx, "patient-1")
	require.NoError(t, err)
	assert.Len(t, link.Code, 8)
	assert.Equal(t, f.now.Add(72*time.Hour), link.ExpiresAt)

	f.svc.ProcessWebhook(ctx, &line.WebhookPayload{Events: []line.Event{textEvent("ev-1", "U-self", "rt", link.Code)}})

	user, err := f.users.GetByID(ctx, "patient-1")
	require.NoError(t, err)
	require.NotNil(t, user.LineUserID)
	assert.Equal(t, "U-self", *user.LineUserID)
	assert.Equal(t, msgSelfLinked, f.messenger.messages()[0].text)
	assert.Equal(t, events.EventSelfLinked, f.dispatcher.published[0].Type)
}

func TestLinkService_IssueSelfLinkCodeRetriesCollision(t *testing.T) {
	f := newLinkFixture(t)
	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	f.svc.newCode = func(int) (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := f.svc.IssueSelfLinkCode(context.Background(), "patient-1")
	require.NoError(t, err)
	second, err := f.svc.IssueSelfLinkCode(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", first.Code)
	assert.Equal(t, "BBBBBBBB", second.Code)
}

func TestLinkService_NonCodeTextAndUnknownCode(t *testing.T) {
	f := newLinkFixture(t)
	f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{
		textEvent("ev-1", "U1", "rt-1", "hello there"),
		textEvent("ev-2", "U1", "rt-2", "ZZZZZZZZ"),
	}})

	sent := f.messenger.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, msgUsage, sent[0].text)
	assert.Equal(t, msgCodeInvalid, sent[1].text)
}

func TestLinkService_DuplicateDeliverySkipped(t *testing.T) {
	f := newLinkFixture(t)
	member := f.invite(t, "Ken")
	ev := textEvent("ev-1", "U-ken", "rt-1", *member.LinkCode)

	first := f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{ev}})
	ev.DeliveryContext.IsRedelivery = true
	second := f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{ev}})

	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, 1, second.Duplicates)
	assert.Len(t, f.messenger.messages(), 1)
}

func TestLinkService_DedupeFailureStillProcesses(t *testing.T) {
	f := newLinkFixture(t)
	f.deduper.err = errors.New("redis down")
	member := f.invite(t, "Ken")

	summary := f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{
		textEvent("ev-1", "U-ken", "rt-1", *member.LinkCode),
	}})
	assert.Equal(t, 1, summary.Processed)
}

func TestLinkService_ReplyFailureIsolatedPerEvent(t *testing.T) {
	f := newLinkFixture(t)
	first := f.invite(t, "Ken")
	second := f.invite(t, "Yumi")
	f.messenger.failTo = map[string]bool{"rt-1": true}

	summary := f.svc.ProcessWebhook(context.Background(), &line.WebhookPayload{Events: []line.Event{
		textEvent("ev-1", "U-ken", "rt-1", *first.LinkCode),
		textEvent("ev-2", "U-yumi", "rt-2", *second.LinkCode),
	}})
	assert.Equal(t, WebhookSummary{Processed: 1, Failed: 1}, summary)

	for _, id := range []string{first.ID, second.ID} {
		m, err := f.members.GetByID(context.Background(), "patient-1", id)
		require.NoError(t, err)
		assert.True(t, m.Linked(), "link applied even when reply fails")
	}
	assert.Empty(t, f.deduper.released, "applied events keep their claim")
}

func TestLinkService_FollowAndUnfollow(t *testing.T) {
	f := newLinkFixture(t)
	ctx := context.Background()
	member := f.invite(t, "Ken")
	_, err := f.svc.Consume(ctx, *member.LinkCode, "U-ken")
	require.NoError(t, err)

	summary := f.svc.ProcessWebhook(ctx, &line.WebhookPayload{Events: []line.Event{
		{Type: line.EventFollow, WebhookEventID: "ev-f", ReplyToken: "rt-f", Source: line.Source{UserID: "U-ken"}},
		{Type: line.EventUnfollow, WebhookEventID: "ev-u", Source: line.Source{UserID: "U-ken"}},
		{Type: "postback", WebhookEventID: "ev-p", Source: line.Source{UserID: "U-ken"}},
	}})
	assert.Equal(t, WebhookSummary{Processed: 2, Ignored: 1}, summary)
	assert.Equal(t, msgWelcome, f.messenger.messages()[0].text)

	detached, err := f.members.GetByID(ctx, "patient-1", member.ID)
	require.NoError(t, err)
	assert.False(t, detached.Linked())
}

func TestLinkService_NilPayload(t *testing.T) {
	f := newLinkFixture(t)
	assert.Equal(t, WebhookSummary{}, f.svc.ProcessWebhook(context.Background(), nil))
}
