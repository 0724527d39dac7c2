package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

// fakeTaskRepo mirrors the Postgres repository's semantics in memory:
// the partial unique constraints, the claim compare-and-swap, and the
// status-guarded terminal transitions.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*model.PendingTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*model.PendingTask)}
}

func (r *fakeTaskRepo) Create(t *model.PendingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tasks {
		if !existing.Active || existing.LeadID != t.LeadID {
			continue
		}
		if existing.Seq == t.Seq {
			return appErrors.NewTaskAlreadyScheduled(t.LeadID, t.Seq)
		}
		if t.Content != "" && existing.Content == t.Content {
			return appErrors.NewTaskAlreadyScheduled(t.LeadID, t.Seq)
		}
	}

	cp := *t
	cp.Active = true
	if cp.Status == "" {
		cp.Status = model.TaskStatusPending
	}
	cp.CreatedAt = time.Now()
	r.tasks[t.ID] = &cp
	t.Active = true
	t.Status = cp.Status
	return nil
}

func (r *fakeTaskRepo) GetByID(id string) (*model.PendingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) ActiveByLead(leadID string) ([]*model.PendingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.PendingTask{}
	for _, t := range r.tasks {
		if t.LeadID == leadID && t.Active {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *fakeTaskRepo) HasEarlierActive(leadID string, seq int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.LeadID == leadID && t.Active && t.Seq < seq && t.Status != model.TaskStatusSending {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTaskRepo) UpdateContent(id, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("no task %s", id)
	}
	for _, other := range r.tasks {
		if other.ID != id && other.LeadID == t.LeadID && other.Active && other.Content == content && content != "" {
			return appErrors.NewTaskAlreadyScheduled(t.LeadID, t.Seq)
		}
	}
	t.Content = content
	return nil
}

func (r *fakeTaskRepo) Claim(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !t.Active {
		return false, nil
	}
	if t.Status != model.TaskStatusPending && t.Status != model.TaskStatusWaiting {
		return false, nil
	}
	t.Status = model.TaskStatusSending
	return true, nil
}

func (r *fakeTaskRepo) DueForDispatch(ctx context.Context, limit int) ([]*model.PendingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.PendingTask{}
	now := time.Now()
	for _, t := range r.tasks {
		if len(out) >= limit {
			break
		}
		if t.Active && t.Status == model.TaskStatusPending && !t.SendAt.After(now) {
			t.Status = model.TaskStatusWaiting
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ReleaseToPending(id string, sendAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	if t.Active && (t.Status == model.TaskStatusWaiting || t.Status == model.TaskStatusSending) {
		t.Status = model.TaskStatusPending
		t.SendAt = sendAt
	}
	return nil
}

func (r *fakeTaskRepo) MarkSent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Terminal() {
		return nil
	}
	now := time.Now()
	t.Status = model.TaskStatusSent
	t.Active = false
	t.SentAt = &now
	return nil
}

func (r *fakeTaskRepo) MarkFailed(id, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Terminal() {
		return nil
	}
	t.Status = model.TaskStatusFailed
	t.Active = false
	t.LastError = lastError
	return nil
}

func (r *fakeTaskRepo) CancelByID(id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !t.Active {
		return nil
	}
	if t.Status == model.TaskStatusPending || t.Status == model.TaskStatusWaiting {
		t.Status = model.TaskStatusCancelled
		t.Active = false
		t.CancelReason = reason
	}
	return nil
}

func (r *fakeTaskRepo) CancelClaimed(id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != model.TaskStatusSending {
		return nil
	}
	t.Status = model.TaskStatusCancelled
	t.Active = false
	t.CancelReason = reason
	return nil
}

func (r *fakeTaskRepo) CancelMatching(leadID, reason string, f repository.CancelFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.LeadID != leadID || !t.Active {
			continue
		}
		if t.Status != model.TaskStatusPending && t.Status != model.TaskStatusWaiting {
			continue
		}
		if f.Scenario != nil && t.Scenario != *f.Scenario {
			continue
		}
		if f.MaxSeq != nil && t.Seq > *f.MaxSeq {
			continue
		}
		t.Status = model.TaskStatusCancelled
		t.Active = false
		t.CancelReason = reason
		n++
	}
	return n, nil
}

var _ repository.PendingTaskRepositoryInterface = (*fakeTaskRepo)(nil)

// fakeLeadRepo keeps leads in memory with monotonic flag merges.
type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[string]*model.Lead)}
}

func (r *fakeLeadRepo) GetByID(id string) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound(id)
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) GetOrCreate(id, businessID string) (*model.Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		cp := *l
		return &cp, false, nil
	}
	l := &model.Lead{ID: id, BusinessID: businessID, State: model.LeadStateNew, CreatedAt: time.Now()}
	r.leads[id] = l
	cp := *l
	return &cp, true, nil
}

func (r *fakeLeadRepo) MergeFlags(id string, f repository.FlagUpdate) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound(id)
	}
	l.PhoneOptIn = l.PhoneOptIn || f.PhoneOptIn
	l.PhoneInText = l.PhoneInText || f.PhoneInText
	l.PhoneInDialog = l.PhoneInDialog || f.PhoneInDialog
	l.PhoneInAdditionalInfo = l.PhoneInAdditionalInfo || f.PhoneInAdditionalInfo
	if l.PhoneNumber == "" {
		l.PhoneNumber = f.PhoneNumber
	}
	if l.Name == "" {
		l.Name = f.Name
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) UpdateState(id, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		l.State = state
	}
	return nil
}

func (r *fakeLeadRepo) AdvanceWatermark(id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil
	}
	if l.ProcessedAsOf == nil || t.After(*l.ProcessedAsOf) {
		ts := t
		l.ProcessedAsOf = &ts
	}
	return nil
}

func (r *fakeLeadRepo) UpdateCursor(id, cursor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		l.LastCursor = cursor
	}
	return nil
}

var _ repository.LeadRepositoryInterface = (*fakeLeadRepo)(nil)

// fakeSettingsRepo returns one settings row for every business.
type fakeSettingsRepo struct {
	settings model.AutoResponseSettings
}

func (r *fakeSettingsRepo) Get(businessID string) (*model.AutoResponseSettings, error) {
	cp := r.settings
	cp.BusinessID = businessID
	return &cp, nil
}

func (r *fakeSettingsRepo) Upsert(s *model.AutoResponseSettings) error {
	r.settings = *s
	return nil
}

var _ repository.SettingsRepositoryInterface = (*fakeSettingsRepo)(nil)

// fakeLogRepo is an in-memory ledger with the same upsert-by-task-id
// behavior as the Postgres one.
type fakeLogRepo struct {
	mu      sync.Mutex
	entries map[string]*model.TaskLogEntry
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: make(map[string]*model.TaskLogEntry)}
}

func (r *fakeLogRepo) get(taskID string) *model.TaskLogEntry {
	e, ok := r.entries[taskID]
	if !ok {
		e = &model.TaskLogEntry{TaskID: taskID, CreatedAt: time.Now()}
		r.entries[taskID] = e
	}
	return e
}

func (r *fakeLogRepo) RecordScheduled(taskID, name, args, businessID string, eta time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(taskID)
	e.Name = name
	e.Args = args
	e.BusinessID = businessID
	etaCopy := eta
	e.ETA = &etaCopy
	if e.Status == "" {
		e.Status = model.LogStatusScheduled
	}
	return nil
}

func (r *fakeLogRepo) RecordStarted(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(taskID)
	if e.Status != model.LogStatusSuccess && e.Status != model.LogStatusFailure {
		e.Status = model.LogStatusStarted
	}
	if e.StartedAt == nil {
		now := time.Now()
		e.StartedAt = &now
	}
	return nil
}

func (r *fakeLogRepo) RecordFinished(taskID string, success bool, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(taskID)
	if success {
		e.Status = model.LogStatusSuccess
	} else {
		e.Status = model.LogStatusFailure
	}
	e.Result = result
	if e.FinishedAt == nil {
		now := time.Now()
		e.FinishedAt = &now
	}
	return nil
}

func (r *fakeLogRepo) GetByID(taskID string) (*model.TaskLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[taskID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLogRepo) ListByBusiness(businessID string, maxAge time.Duration) ([]*model.TaskLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.TaskLogEntry{}
	for _, e := range r.entries {
		if e.BusinessID == businessID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) PurgeOlderThan(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		ts := e.BestTimestamp()
		if ts != nil && ts.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

var _ repository.TaskLogRepositoryInterface = (*fakeLogRepo)(nil)

// fakeSender records sends and can be told to fail.
type fakeSender struct {
	mu    sync.Mutex
	sends []string // body text of each successful send
	err   error
}

func (s *fakeSender) Send(ctx context.Context, from, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sends = append(s.sends, body)
	return fmt.Sprintf("prov-%d", len(s.sends)), nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

// fakeGenerator returns a fixed string or an error.
type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, templateBody string, lead *model.Lead) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

// fakeEventSource serves canned event pages.
type fakeEventSource struct {
	pages map[string][]*model.Event // keyed by cursor, "" is the first page
	next  map[string]string
}

func (s *fakeEventSource) FetchEvents(ctx context.Context, leadID, cursor string) ([]*model.Event, string, error) {
	return s.pages[cursor], s.next[cursor], nil
}
