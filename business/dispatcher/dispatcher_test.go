package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"platformBrain/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeNotifications struct {
	saved []domain.Notification
	err   error
	panic bool
}

func (f *fakeNotifications) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return f.err
	}
	n.ID = uint(len(f.saved) + 1)
	f.saved = append(f.saved, *n)
	return nil
}

type fakeMailer struct {
	to  []string
	err error
}

func (f *fakeMailer) SendEmail(ctx context.Context, toName, toEmail, subject, message string) error {
	f.to = append(f.to, toEmail)
	return f.err
}

type fakeRecipients struct{}

func (fakeRecipients) Recipient(ctx context.Context, tenantID, userID uint) (string, string, error) {
	return "Budi", "budi@example.com", nil
}

type fakeDiscounts struct {
	codes   map[string]domain.Discount
	created []domain.Discount
	usages  []domain.DiscountUsage
}

func (f *fakeDiscounts) FindByCode(ctx context.Context, tenantID uint, code string) (domain.Discount, bool, error) {
	d, ok := f.codes[code]
	return d, ok, nil
}

func (f *fakeDiscounts) CreateDiscount(ctx context.Context, d *domain.Discount) error {
	d.ID = uint(100 + len(f.created))
	f.created = append(f.created, *d)
	return nil
}

func (f *fakeDiscounts) RecordUsage(ctx context.Context, u *domain.DiscountUsage) error {
	f.usages = append(f.usages, *u)
	return nil
}

type fakeCampaigns struct {
	shown map[string]int
}

func (f *fakeCampaigns) MarkShown(ctx context.Context, tenantID, userID uint, campaignID string, at time.Time) error {
	if f.shown == nil {
		f.shown = map[string]int{}
	}
	f.shown[campaignID]++
	return nil
}

type fakeRecommendations struct {
	fail map[uint64]bool
	rows []domain.UserRecommendation
}

func (f *fakeRecommendations) UpsertRecommendation(ctx context.Context, rec domain.UserRecommendation) error {
	if f.fail[rec.ProductID] {
		return errors.New("constraint violation")
	}
	f.rows = append(f.rows, rec)
	return nil
}

type fakeCache struct {
	data map[string][]byte
	ttl  map[string]time.Duration
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.data == nil {
		f.data = map[string][]byte{}
		f.ttl = map[string]time.Duration{}
	}
	f.data[key] = value
	f.ttl[key] = ttl
	return nil
}

// ---- helpers ----

func decode(t *testing.T, raw string) []domain.Action {
	t.Helper()
	var actions []domain.Action
	require.NoError(t, json.Unmarshal([]byte(raw), &actions))
	return actions
}

var user42 = DispatchContext{TenantID: 1, UserID: 42}

// ---- tests ----

func TestDispatch_ScenarioNotification(t *testing.T) {
	sink := &fakeNotifications{}
	d := New(WithNotifications(sink))

	res := d.DispatchActions(context.Background(), domain.Decision{
		ID:      "d1",
		RuleID:  1,
		Actions: decode(t, `[{"type":"send_notification","params":{"title":"Special offer"}}]`),
	}, user42)

	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success, res.Results[0].Error)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "info", sink.saved[0].Type)
	assert.Equal(t, uint(42), sink.saved[0].UserID)
}

func TestDispatch_NotificationWithoutSink(t *testing.T) {
	d := New()

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[{"type":"send_notification","params":{"title":"x","message":"y"}}]`),
	}, user42)

	require.Len(t, res.Results, 1)
	assert.False(t, res.Results[0].Success)
	assert.NotEmpty(t, res.Results[0].Error)
}

func TestDispatch_EmailNotification(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("mailjet 500")}
	d := New(WithNotifications(&fakeNotifications{}), WithMailer(mailer, fakeRecipients{}))

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[{"type":"send_notification","params":{"title":"Hi","message":"Deal","type":"email"}}]`),
	}, user42)

	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success, "persisted notification counts even when e-mail fails")
	assert.Equal(t, false, res.Results[0].Data["email_sent"])
	assert.Equal(t, []string{"budi@example.com"}, mailer.to)
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	cache := &fakeCache{}
	campaigns := &fakeCampaigns{}
	d := New(
		WithNotifications(&fakeNotifications{panic: true}),
		WithCampaigns(campaigns),
		WithHomepageCache(cache, time.Hour),
	)

	res := d.DispatchActions(context.Background(), domain.Decision{
		RuleID: 5,
		Actions: decode(t, `[
			{"type":"send_notification","params":{"title":"x"}},
			{"type":"teleport"},
			{"type":"show_campaign","params":{"campaignId":77}},
			{"type":"update_homepage","params":{"featuredProducts":[1,2],"sections":["deals"]}}
		]`),
	}, user42)

	require.Len(t, res.Results, 4)
	assert.False(t, res.Results[0].Success)
	assert.Contains(t, res.Results[0].Error, "panicked")
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "unknown action type: teleport", res.Results[1].Error)
	assert.True(t, res.Results[2].Success)
	assert.True(t, res.Results[3].Success)
	assert.Equal(t, 2, res.Succeeded())

	assert.Equal(t, 1, campaigns.shown["77"])

	raw, ok := cache.data[HomepageKey(1, 42)]
	require.True(t, ok)
	assert.Equal(t, time.Hour, cache.ttl[HomepageKey(1, 42)])
	var hp domain.HomepageConfig
	require.NoError(t, json.Unmarshal(raw, &hp))
	assert.Equal(t, []uint64{1, 2}, hp.FeaturedProducts)
	assert.Equal(t, uint(5), hp.RuleID)
}

func TestDispatch_DiscountByCode(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &fakeDiscounts{codes: map[string]domain.Discount{
		"WELCOME": {ID: 1, Code: "WELCOME", Percent: 10, IsActive: true},
		"OLD":     {ID: 2, Code: "OLD", Percent: 10, IsActive: true, ExpiresAt: &past},
		"OFF":     {ID: 3, Code: "OFF", Amount: 5, IsActive: false},
	}}
	d := New(WithDiscounts(repo))

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[
			{"type":"apply_discount","params":{"discountCode":"WELCOME"}},
			{"type":"apply_discount","params":{"discount_code":"OLD"}},
			{"type":"apply_discount","params":{"discount_code":"OFF"}},
			{"type":"apply_discount","params":{"discount_code":"NOPE"}}
		]`),
	}, user42)

	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.False(t, res.Results[2].Success)
	assert.False(t, res.Results[3].Success)
	require.Len(t, repo.usages, 1)
	assert.Equal(t, uint(1), repo.usages[0].DiscountID)
}

func TestDispatch_DiscountByPercentCreatesPersonalCode(t *testing.T) {
	repo := &fakeDiscounts{}
	d := New(WithDiscounts(repo))

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[{"type":"apply_discount","params":{"percent":15,"valid_days":7}}]`),
	}, user42)

	require.True(t, res.Results[0].Success, res.Results[0].Error)
	require.Len(t, repo.created, 1)
	assert.Equal(t, 15.0, repo.created[0].Percent)
	require.NotNil(t, repo.created[0].ExpiresAt)
	require.NotNil(t, repo.created[0].UserID)
	assert.Equal(t, uint(42), *repo.created[0].UserID)
	require.Len(t, repo.usages, 1)
	assert.Equal(t, repo.created[0].ID, repo.usages[0].DiscountID)
}

func TestDispatch_RecommendPartialSuccess(t *testing.T) {
	repo := &fakeRecommendations{fail: map[uint64]bool{2: true}}
	d := New(WithRecommendations(repo))

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[
			{"type":"recommend_products","params":{"productIds":[1,2,3],"reason":"affinity"}},
			{"type":"recommend_products","params":{"product_ids":[2],"reason":"affinity"}}
		]`),
	}, user42)

	assert.True(t, res.Results[0].Success)
	assert.Equal(t, []uint64{1, 3}, res.Results[0].Data["saved"])
	assert.Equal(t, []uint64{2}, res.Results[0].Data["failed"])
	assert.False(t, res.Results[1].Success)

	require.Len(t, repo.rows, 2)
	assert.Equal(t, domain.RecommendationSourceBrain, repo.rows[0].Source)
	assert.Equal(t, "affinity", repo.rows[0].Reason)
}

func TestDispatch_AnonymousUserRejected(t *testing.T) {
	d := New(WithCampaigns(&fakeCampaigns{}))

	res := d.DispatchActions(context.Background(), domain.Decision{
		Actions: decode(t, `[{"type":"show_campaign","params":{"campaign_id":"x"}}]`),
	}, DispatchContext{TenantID: 1})

	assert.False(t, res.Results[0].Success)
}
