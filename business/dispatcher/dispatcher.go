package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"platformBrain/domain"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/tracing"

	"github.com/google/uuid"
)

// ---- Sink interfaces ----

type NotificationSink interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

type Mailer interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, message string) error
}

// RecipientLookup resolves where an e-mail notification goes.
type RecipientLookup interface {
	Recipient(ctx context.Context, tenantID, userID uint) (name, email string, err error)
}

type DiscountRepository interface {
	FindByCode(ctx context.Context, tenantID uint, code string) (domain.Discount, bool, error)
	CreateDiscount(ctx context.Context, d *domain.Discount) error
	RecordUsage(ctx context.Context, u *domain.DiscountUsage) error
}

type CampaignRepository interface {
	MarkShown(ctx context.Context, tenantID, userID uint, campaignID string, at time.Time) error
}

type RecommendationRepository interface {
	UpsertRecommendation(ctx context.Context, rec domain.UserRecommendation) error
}

type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ---- Results ----

type DispatchContext struct {
	TenantID uint
	UserID   uint
}

type ActionResult struct {
	Type    domain.ActionType `json:"type"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
}

type DispatchResult struct {
	DecisionID string         `json:"decision_id"`
	RuleID     uint           `json:"rule_id"`
	Results    []ActionResult `json:"results"`
}

// Succeeded counts actions that completed.
func (r DispatchResult) Succeeded() int {
	n := 0
	for _, a := range r.Results {
		if a.Success {
			n++
		}
	}
	return n
}

var errNoUser = errors.New("action requires an identified user")

// ---- Dispatcher ----

type Dispatcher struct {
	notifications   NotificationSink
	mailer          Mailer
	recipients      RecipientLookup
	discounts       DiscountRepository
	campaigns       CampaignRepository
	recommendations RecommendationRepository
	cache           Cache
	homepageTTL     time.Duration
	now             func() time.Time
}

type Option func(*Dispatcher)

func WithNotifications(sink NotificationSink) Option {
	return func(d *Dispatcher) { d.notifications = sink }
}

func WithMailer(m Mailer, lookup RecipientLookup) Option {
	return func(d *Dispatcher) {
		d.mailer = m
		d.recipients = lookup
	}
}

func WithDiscounts(repo DiscountRepository) Option {
	return func(d *Dispatcher) { d.discounts = repo }
}

func WithCampaigns(repo CampaignRepository) Option {
	return func(d *Dispatcher) { d.campaigns = repo }
}

func WithRecommendations(repo RecommendationRepository) Option {
	return func(d *Dispatcher) { d.recommendations = repo }
}

func WithHomepageCache(c Cache, ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.cache = c
		if ttl > 0 {
			d.homepageTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		homepageTTL: 24 * time.Hour,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func HomepageKey(tenantID, userID uint) string {
	return fmt.Sprintf("brain:homepage:%d:%d", tenantID, userID)
}

// DispatchActions runs the decision's actions in order. Every action gets a
// result; a failing or panicking action never stops the ones after it.
func (d *Dispatcher) DispatchActions(ctx context.Context, decision domain.Decision, dc DispatchContext) DispatchResult {
	ctx, span := tracing.StartSpan(ctx, "dispatcher.dispatch", tracing.Tenant(dc.TenantID), tracing.User(dc.UserID))
	defer span.End()

	out := DispatchResult{
		DecisionID: decision.ID,
		RuleID:     decision.RuleID,
		Results:    make([]ActionResult, 0, len(decision.Actions)),
	}

	for _, action := range decision.Actions {
		res := d.run(ctx, action, dc, decision)
		actionsTotal.WithLabelValues(string(action.Type), outcome(res.Success)).Inc()
		if !res.Success {
			logger.Warn("action failed",
				"rule_id", decision.RuleID,
				"action", action.Type,
				"tenant_id", dc.TenantID,
				"user_id", dc.UserID,
				"error", res.Error,
			)
		}
		out.Results = append(out.Results, res)
	}

	return out
}

func (d *Dispatcher) run(ctx context.Context, action domain.Action, dc DispatchContext, decision domain.Decision) (res ActionResult) {
	res.Type = action.Type
	defer func() {
		if r := recover(); r != nil {
			res = ActionResult{Type: action.Type, Error: fmt.Sprintf("action panicked: %v", r)}
		}
	}()

	var (
		data map[string]any
		err  error
	)
	switch {
	case action.Notification != nil:
		data, err = d.sendNotification(ctx, *action.Notification, dc)
	case action.Discount != nil:
		data, err = d.applyDiscount(ctx, *action.Discount, dc)
	case action.Campaign != nil:
		data, err = d.showCampaign(ctx, *action.Campaign, dc)
	case action.Recommend != nil:
		data, err = d.recommendProducts(ctx, *action.Recommend, dc)
	case action.Homepage != nil:
		data, err = d.updateHomepage(ctx, *action.Homepage, dc, decision.RuleID)
	default:
		err = fmt.Errorf("unknown action type: %s", action.Type)
	}

	res.Data = data
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

func (d *Dispatcher) sendNotification(ctx context.Context, p domain.NotificationParams, dc DispatchContext) (map[string]any, error) {
	if d.notifications == nil {
		return nil, errors.New("notification sink not configured")
	}
	if dc.UserID == 0 {
		return nil, errNoUser
	}
	if strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Message) == "" {
		return nil, errors.New("notification needs a title or message")
	}

	kind := strings.ToLower(strings.TrimSpace(p.Type))
	if kind == "" {
		kind = "info"
	}

	n := &domain.Notification{
		TenantID: dc.TenantID,
		UserID:   dc.UserID,
		Title:    p.Title,
		Message:  p.Message,
		Type:     kind,
		Data:     p.Data,
	}
	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	data := map[string]any{"notification_id": n.ID}
	if kind == "email" {
		data["email_sent"] = false
		if err := d.sendEmail(ctx, dc, p); err != nil {
			data["email_error"] = err.Error()
		} else {
			data["email_sent"] = true
		}
	}
	return data, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, dc DispatchContext, p domain.NotificationParams) error {
	if d.mailer == nil || d.recipients == nil {
		return errors.New("mailer not configured")
	}
	name, email, err := d.recipients.Recipient(ctx, dc.TenantID, dc.UserID)
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	if email == "" {
		return errors.New("user has no e-mail address")
	}

	body := p.Message
	if body == "" {
		body = p.Title
	}
	return d.mailer.SendEmail(ctx, name, email, p.Title, body)
}

func (d *Dispatcher) applyDiscount(ctx context.Context, p domain.DiscountParams, dc DispatchContext) (map[string]any, error) {
	if d.discounts == nil {
		return nil, errors.New("discount store not configured")
	}
	if dc.UserID == 0 {
		return nil, errNoUser
	}

	now := d.now()
	var discount domain.Discount

	switch {
	case strings.TrimSpace(p.DiscountCode) != "":
		found, ok, err := d.discounts.FindByCode(ctx, dc.TenantID, strings.TrimSpace(p.DiscountCode))
		if err != nil {
			return nil, fmt.Errorf("find discount: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("discount %q not found", p.DiscountCode)
		}
		if !found.UsableAt(now) {
			return nil, fmt.Errorf("discount %q is inactive or expired", p.DiscountCode)
		}
		discount = found

	case p.Percent > 0 || p.Amount > 0:
		if p.Percent > 100 {
			return nil, fmt.Errorf("discount percent %.2f out of range", p.Percent)
		}
		uid := dc.UserID
		discount = domain.Discount{
			TenantID: dc.TenantID,
			Code:     personalCode(),
			Percent:  p.Percent,
			Amount:   p.Amount,
			IsActive: true,
			UserID:   &uid,
		}
		if p.ValidDays > 0 {
			exp := now.Add(time.Duration(p.ValidDays) * 24 * time.Hour)
			discount.ExpiresAt = &exp
		}
		if err := d.discounts.CreateDiscount(ctx, &discount); err != nil {
			return nil, fmt.Errorf("create discount: %w", err)
		}

	default:
		return nil, errors.New("discount needs a code, percent or amount")
	}

	usage := &domain.DiscountUsage{
		TenantID:   dc.TenantID,
		DiscountID: discount.ID,
		UserID:     dc.UserID,
		Source:     domain.RecommendationSourceBrain,
	}
	if err := d.discounts.RecordUsage(ctx, usage); err != nil {
		return nil, fmt.Errorf("record discount usage: %w", err)
	}

	return map[string]any{"discount_id": discount.ID, "code": discount.Code}, nil
}

func personalCode() string {
	return "PB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (d *Dispatcher) showCampaign(ctx context.Context, p domain.CampaignParams, dc DispatchContext) (map[string]any, error) {
	if d.campaigns == nil {
		return nil, errors.New("campaign store not configured")
	}
	if dc.UserID == 0 {
		return nil, errNoUser
	}
	id := strings.TrimSpace(p.CampaignID.String())
	if id == "" {
		return nil, errors.New("campaign_id is required")
	}

	if err := d.campaigns.MarkShown(ctx, dc.TenantID, dc.UserID, id, d.now().UTC()); err != nil {
		return nil, fmt.Errorf("mark campaign shown: %w", err)
	}
	return map[string]any{"campaign_id": id}, nil
}

func (d *Dispatcher) recommendProducts(ctx context.Context, p domain.RecommendParams, dc DispatchContext) (map[string]any, error) {
	if d.recommendations == nil {
		return nil, errors.New("recommendation store not configured")
	}
	if dc.UserID == 0 {
		return nil, errNoUser
	}
	if len(p.ProductIDs) == 0 {
		return nil, errors.New("product_ids is required")
	}

	now := d.now().UTC()
	saved := make([]uint64, 0, len(p.ProductIDs))
	failed := make([]uint64, 0)
	for _, pid := range p.ProductIDs {
		err := d.recommendations.UpsertRecommendation(ctx, domain.UserRecommendation{
			TenantID:  dc.TenantID,
			UserID:    dc.UserID,
			ProductID: pid,
			Reason:    p.Reason,
			Source:    domain.RecommendationSourceBrain,
			Score:     p.Score,
			UpdatedAt: now,
		})
		if err != nil {
			logger.Warn("recommendation upsert failed", "product_id", pid, "user_id", dc.UserID, "error", err)
			failed = append(failed, pid)
			continue
		}
		saved = append(saved, pid)
	}

	data := map[string]any{"saved": saved, "failed": failed}
	if len(saved) == 0 {
		return data, errors.New("no recommendation could be saved")
	}
	return data, nil
}

func (d *Dispatcher) updateHomepage(ctx context.Context, p domain.HomepageParams, dc DispatchContext, ruleID uint) (map[string]any, error) {
	if d.cache == nil {
		return nil, errors.New("homepage cache not configured")
	}
	if dc.UserID == 0 {
		return nil, errNoUser
	}

	cfg := domain.HomepageConfig{
		TenantID:         dc.TenantID,
		UserID:           dc.UserID,
		FeaturedProducts: p.FeaturedProducts,
		Banners:          p.Banners,
		Sections:         p.Sections,
		RuleID:           ruleID,
		UpdatedAt:        d.now().UTC(),
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode homepage: %w", err)
	}

	key := HomepageKey(dc.TenantID, dc.UserID)
	if err := d.cache.Set(ctx, key, raw, d.homepageTTL); err != nil {
		return nil, fmt.Errorf("cache homepage: %w", err)
	}
	return map[string]any{"key": key, "ttl_seconds": int(d.homepageTTL.Seconds())}, nil
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
