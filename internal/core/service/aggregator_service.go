package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/api/metrics"
	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

const defaultPollInterval = 30 * time.Second

// TokenProvider supplies the current bearer token when authenticated. The
// session service implements it.
type TokenProvider interface {
	Token() (string, bool)
}

// Aggregator merges the three independently polled notification feeds into
// one de-duplicated, time-ordered, read-tracked view, and reconciles polling
// snapshots with realtime push deltas. Polls are the source of truth; deltas
// are a low-latency preview.
type Aggregator struct {
	session   TokenProvider
	sources   []ports.NotificationSource
	approvals ports.ApprovalAPI
	transport ports.Transport
	alerter   ports.Alerter
	interval  time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	polled  map[domain.SourceKind][]domain.NotificationItem
	deltas  []domain.NotificationItem
	running bool
	stop    chan struct{}
	unsubs  []func()
	wg      sync.WaitGroup
}

// NewAggregator wires the aggregator. interval <= 0 selects the default 30s.
func NewAggregator(
	session TokenProvider,
	system, task ports.NotificationSource,
	approvals ports.ApprovalAPI,
	transport ports.Transport,
	alerter ports.Alerter,
	interval time.Duration,
	log zerolog.Logger,
) *Aggregator {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Aggregator{
		session:   session,
		sources:   []ports.NotificationSource{system, task, approvals},
		approvals: approvals,
		transport: transport,
		alerter:   alerter,
		interval:  interval,
		log:       log,
		polled:    make(map[domain.SourceKind][]domain.NotificationItem),
	}
}

// Start subscribes to realtime frames and begins the refresh cycle: one
// immediate refresh, then one per interval until Stop or ctx cancellation.
// A second Start while running is a no-op.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.stop = make(chan struct{})
	stop := a.stop
	for _, ft := range []string{
		domain.FrameNotification,
		domain.FrameNewMessage,
		domain.FrameNewApprovalRequest,
		domain.FrameApprovalResponse,
	} {
		a.unsubs = append(a.unsubs, a.transport.On(ft, a.handleFrame))
	}
	a.mu.Unlock()

	a.wg.Add(1)
	go a.loop(ctx, stop)
}

// Stop cancels the refresh cycle and detaches from the transport. Safe to
// call when not running.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stop)
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	a.wg.Wait()
}

func (a *Aggregator) loop(ctx context.Context, stop <-chan struct{}) {
	defer a.wg.Done()

	a.Refresh(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			a.Refresh(ctx)
		}
	}
}

// Refresh polls all three sources concurrently and merges the results. Each
// source settles independently: a 401 clears only that source, any other
// failure keeps its previous snapshot. Without authentication the cycle is
// skipped and every collection cleared.
func (a *Aggregator) Refresh(ctx context.Context) {
	token, ok := a.session.Token()
	if !ok {
		a.mu.Lock()
		a.polled = make(map[domain.SourceKind][]domain.NotificationItem)
		a.deltas = nil
		a.mu.Unlock()
		metrics.UnreadNotifications.Set(0)
		return
	}

	type result struct {
		kind  domain.SourceKind
		items []domain.NotificationItem
		err   error
	}
	results := make([]result, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src ports.NotificationSource) {
			defer wg.Done()
			items, err := src.List(ctx, token)
			results[i] = result{kind: src.Kind(), items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	// The merge step runs only after all three settle.
	anyOK := false
	a.mu.Lock()
	for _, r := range results {
		switch {
		case r.err == nil:
			anyOK = true
			a.polled[r.kind] = r.items
			a.dropDeltasLocked(r.kind)
			metrics.PollsTotal.WithLabelValues(string(r.kind), "ok").Inc()
		case errors.Is(r.err, domain.ErrUnauthorized):
			a.polled[r.kind] = nil
			a.dropDeltasLocked(r.kind)
			metrics.PollsTotal.WithLabelValues(string(r.kind), "unauthorized").Inc()
			a.log.Warn().Str("source", string(r.kind)).Msg("feed poll unauthorized, cleared")
		default:
			// Keep the stale-but-valid snapshot.
			metrics.PollsTotal.WithLabelValues(string(r.kind), "error").Inc()
			a.log.Warn().Err(r.err).Str("source", string(r.kind)).Msg("feed poll failed")
		}
	}
	// Chat deltas have no poll behind them; a cycle where every source failed
	// proved nothing, so they survive until at least one poll lands.
	if anyOK {
		a.dropDeltasLocked(domain.SourceChat)
	}
	unread := a.unreadLocked()
	a.mu.Unlock()

	metrics.UnreadNotifications.Set(float64(unread))
}

// Combined returns the merged view, newest first. A zero filter returns the
// union; otherwise only items of that source. Push deltas not yet present in
// a polled snapshot are included, de-duplicated by composite key. Returned
// items never alias aggregator state, so callers may hold them across later
// mutations.
func (a *Aggregator) Combined(filter domain.SourceKind) []domain.NotificationItem {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.NotificationItem, 0)
	seen := make(map[domain.CompositeKey]struct{})
	for _, kind := range domain.SourceKinds {
		if filter != "" && kind != filter {
			continue
		}
		for _, item := range a.polled[kind] {
			out = append(out, cloneItem(item))
			seen[item.Key()] = struct{}{}
		}
	}
	for _, item := range a.deltas {
		if filter != "" && item.Source != filter {
			continue
		}
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		out = append(out, cloneItem(item))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadCount is the merged unread total: polled unread plus push deltas not
// yet reconciled by a poll.
func (a *Aggregator) UnreadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unreadLocked()
}

// UnreadBySource breaks the unread total down per feed (chat deltas included
// under their own kind).
func (a *Aggregator) UnreadBySource() map[domain.SourceKind]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[domain.SourceKind]int)
	seen := make(map[domain.CompositeKey]struct{})
	for kind, items := range a.polled {
		for _, item := range items {
			seen[item.Key()] = struct{}{}
			if !item.IsRead {
				counts[kind]++
			}
		}
	}
	for _, item := range a.deltas {
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		if !item.IsRead {
			counts[item.Source]++
		}
	}
	return counts
}

// MarkRead optimistically flips the item locally, then issues the backend
// call. A failed call is not rolled back: the next poll corrects any drift.
func (a *Aggregator) MarkRead(ctx context.Context, key domain.CompositeKey) error {
	token, ok := a.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}
	src := a.sourceFor(key.Source)
	if src == nil {
		return fmt.Errorf("unknown notification source %q", key.Source)
	}

	a.mu.Lock()
	a.flipReadLocked(key)
	unread := a.unreadLocked()
	a.mu.Unlock()
	metrics.UnreadNotifications.Set(float64(unread))

	metrics.MarkReadTotal.WithLabelValues(string(key.Source)).Inc()
	if err := src.MarkRead(ctx, token, key.ID); err != nil {
		a.log.Warn().Err(err).
			Str("source", string(key.Source)).
			Int64("id", key.ID).
			Msg("mark-read call failed, keeping optimistic state")
		return err
	}
	return nil
}

// MarkAllRead flips every currently-unread item matching the tab filter
// (zero value means all three feeds), issues one mark-read call per item
// concurrently, then triggers a full refresh.
func (a *Aggregator) MarkAllRead(ctx context.Context, tab domain.SourceKind) error {
	token, ok := a.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}

	a.mu.Lock()
	var targets []domain.CompositeKey
	seen := make(map[domain.CompositeKey]struct{})
	for _, kind := range domain.SourceKinds {
		if tab != "" && kind != tab {
			continue
		}
		for i := range a.polled[kind] {
			item := &a.polled[kind][i]
			seen[item.Key()] = struct{}{}
			if !item.IsRead {
				item.IsRead = true
				targets = append(targets, item.Key())
			}
		}
	}
	// Unreconciled deltas are visibly unread too; they get their own backend
	// call unless a polled item already carries the same key. Chat deltas
	// have no backend to call and are only flipped locally.
	for i := range a.deltas {
		d := &a.deltas[i]
		if tab != "" && d.Source != tab {
			continue
		}
		if _, dup := seen[d.Key()]; !dup && !d.IsRead && a.sourceFor(d.Source) != nil {
			targets = append(targets, d.Key())
		}
		d.IsRead = true
	}
	a.mu.Unlock()

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, key := range targets {
		wg.Add(1)
		go func(i int, key domain.CompositeKey) {
			defer wg.Done()
			metrics.MarkReadTotal.WithLabelValues(string(key.Source)).Inc()
			errs[i] = a.sourceFor(key.Source).MarkRead(ctx, token, key.ID)
		}(i, key)
	}
	wg.Wait()

	a.Refresh(ctx)
	return errors.Join(errs...)
}

// RespondApproval answers a pending approval inline and updates the embedded
// request state on success.
func (a *Aggregator) RespondApproval(ctx context.Context, id int64, approve bool, comment string) error {
	token, ok := a.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}
	if err := a.approvals.Respond(ctx, token, id, approve, comment); err != nil {
		return err
	}

	status := domain.ApprovalApproved
	if !approve {
		status = domain.ApprovalRejected
	}
	now := time.Now().UTC()
	a.mu.Lock()
	for i := range a.polled[domain.SourceApproval] {
		if ar := a.polled[domain.SourceApproval][i].Approval; ar != nil && ar.ID == id {
			ar.Status = status
			ar.RespondedAt = &now
		}
	}
	a.mu.Unlock()
	return nil
}

// DismissApproval removes one approval notification. Destructive: local
// state mutates only after the backend call succeeds.
func (a *Aggregator) DismissApproval(ctx context.Context, id int64) error {
	token, ok := a.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}
	if err := a.approvals.Dismiss(ctx, token, id); err != nil {
		return err
	}

	key := domain.CompositeKey{Source: domain.SourceApproval, ID: id}
	a.mu.Lock()
	a.removeLocked(key)
	unread := a.unreadLocked()
	a.mu.Unlock()
	metrics.UnreadNotifications.Set(float64(unread))
	return nil
}

// ClearApprovals removes every approval notification. It refuses to run
// without explicit confirmation, and mutates local state only on success.
func (a *Aggregator) ClearApprovals(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	token, ok := a.session.Token()
	if !ok {
		return domain.ErrUnauthorized
	}
	if err := a.approvals.ClearAll(ctx, token); err != nil {
		return err
	}

	a.mu.Lock()
	a.polled[domain.SourceApproval] = nil
	a.dropDeltasLocked(domain.SourceApproval)
	unread := a.unreadLocked()
	a.mu.Unlock()
	metrics.UnreadNotifications.Set(float64(unread))
	return nil
}

// handleFrame converts a realtime push into a pending delta and raises the
// transient alert. Unparseable payloads are dropped.
func (a *Aggregator) handleFrame(frame domain.Frame) {
	item, ok := itemFromFrame(frame)
	if !ok {
		a.log.Debug().Str("frame_type", frame.Type).Msg("unparseable push payload dropped")
		return
	}

	a.mu.Lock()
	dup := false
	for _, d := range a.deltas {
		if d.Key() == item.Key() {
			dup = true
			break
		}
	}
	if !dup {
		a.deltas = append(a.deltas, item)
	}
	unread := a.unreadLocked()
	a.mu.Unlock()

	metrics.UnreadNotifications.Set(float64(unread))
	if !dup {
		a.alerter.Notify(item.Title, item.Message)
	}
}

// cloneItem detaches an item from aggregator-owned memory. RespondApproval
// writes through the embedded request, so the pointer must not escape.
func cloneItem(item domain.NotificationItem) domain.NotificationItem {
	if item.Approval != nil {
		req := *item.Approval
		item.Approval = &req
	}
	return item
}

func (a *Aggregator) sourceFor(kind domain.SourceKind) ports.NotificationSource {
	for _, src := range a.sources {
		if src.Kind() == kind {
			return src
		}
	}
	return nil
}

// unreadLocked counts polled unread plus deltas whose key no poll has
// reconciled yet. Caller holds mu.
func (a *Aggregator) unreadLocked() int {
	total := 0
	seen := make(map[domain.CompositeKey]struct{})
	for _, items := range a.polled {
		for _, item := range items {
			seen[item.Key()] = struct{}{}
			if !item.IsRead {
				total++
			}
		}
	}
	for _, item := range a.deltas {
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		if !item.IsRead {
			total++
		}
	}
	return total
}

func (a *Aggregator) flipReadLocked(key domain.CompositeKey) {
	for i := range a.polled[key.Source] {
		if a.polled[key.Source][i].ID == key.ID {
			a.polled[key.Source][i].IsRead = true
		}
	}
	for i := range a.deltas {
		if a.deltas[i].Key() == key {
			a.deltas[i].IsRead = true
		}
	}
}

func (a *Aggregator) removeLocked(key domain.CompositeKey) {
	items := a.polled[key.Source]
	kept := items[:0]
	for _, item := range items {
		if item.ID != key.ID {
			kept = append(kept, item)
		}
	}
	a.polled[key.Source] = kept

	deltas := a.deltas[:0]
	for _, item := range a.deltas {
		if item.Key() != key {
			deltas = append(deltas, item)
		}
	}
	a.deltas = deltas
}

func (a *Aggregator) dropDeltasLocked(kind domain.SourceKind) {
	kept := a.deltas[:0]
	for _, item := range a.deltas {
		if item.Source != kind {
			kept = append(kept, item)
		}
	}
	a.deltas = kept
}

// approvalEnvelope wraps approval pushes: {"approval_request": {...}}.
type approvalEnvelope struct {
	ApprovalRequest *domain.ApprovalRequest `json:"approval_request"`
}

// itemFromFrame normalises a push payload into a feed item. The returned bool
// is false when the payload cannot be understood.
func itemFromFrame(frame domain.Frame) (domain.NotificationItem, bool) {
	switch frame.Type {
	case domain.FrameNotification:
		var item domain.NotificationItem
		if err := json.Unmarshal(frame.Payload, &item); err != nil || item.ID == 0 {
			return domain.NotificationItem{}, false
		}
		item.Source = domain.SourceSystem
		if item.Title == "" {
			item.Title = "Notification"
		}
		return item, true

	case domain.FrameNewMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil || msg.ID == 0 {
			return domain.NotificationItem{}, false
		}
		return domain.NotificationItem{
			ID:        msg.ID,
			Source:    domain.SourceChat,
			Title:     "New message",
			Message:   msg.Body,
			CreatedAt: msg.SentAt,
		}, true

	case domain.FrameNewApprovalRequest, domain.FrameApprovalResponse:
		var env approvalEnvelope
		if err := json.Unmarshal(frame.Payload, &env); err != nil || env.ApprovalRequest == nil || env.ApprovalRequest.ID == 0 {
			return domain.NotificationItem{}, false
		}
		req := env.ApprovalRequest
		title := "New approval request"
		if frame.Type == domain.FrameApprovalResponse {
			title = "Approval " + string(req.Status)
		}
		return domain.NotificationItem{
			ID:        req.ID,
			Source:    domain.SourceApproval,
			Title:     title,
			Message:   req.Subject,
			CreatedAt: req.CreatedAt,
			Approval:  req,
		}, true
	}
	return domain.NotificationItem{}, false
}
