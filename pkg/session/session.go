package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/async"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// Session keeps a "current record" view over the trace store consistent
// across filter changes, navigation, prefetch and edits. It owns a summary
// list cache keyed by filter and a detail cache keyed by trace ID.
//
// The selected ID and the index always change together under the session
// lock. The displayed detail is always read from the slot of the selected
// ID, so a late response for another trace can only land in its own slot.
type Session struct {
	repo interfaces.TraceRepository
	cap  model.Capability

	summaries *Cache[[]*model.TraceSummary]
	details   *Cache[*model.Trace]
	flight    singleflight.Group
	loads     async.Group

	mu         sync.Mutex
	filter     model.TraceFilter
	list       []*model.TraceSummary
	index      int
	selectedID model.TraceID
	err        error
	inflight   map[model.TraceID]int
	listeners  []func(View)
}

type Option func(*Session)

// WithClock sets the clock stamped on cache entries
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.summaries = NewCache[[]*model.TraceSummary](now)
		s.details = NewCache[*model.Trace](now)
	}
}

// WithFilter sets the initial filter. The list is fetched by the first
// Refresh or SetFilter call.
func WithFilter(f model.TraceFilter) Option {
	return func(s *Session) {
		s.filter = f
	}
}

// New creates a session. cap is consulted before every write.
func New(repo interfaces.TraceRepository, cap model.Capability, opts ...Option) *Session {
	s := &Session{
		repo:      repo,
		cap:       cap,
		summaries: NewCache[[]*model.TraceSummary](nil),
		details:   NewCache[*model.Trace](nil),
		index:     -1,
		inflight:  make(map[model.TraceID]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View is an atomic snapshot of the session state
type View struct {
	Filter    model.TraceFilter
	Summaries []*model.TraceSummary

	// Index is the position of Selected in Summaries, -1 when empty
	Index    int
	Selected *model.TraceSummary

	// Detail is the last fetched full record of Selected. It may be stale
	// while a refetch is running; DetailStatus tells.
	Detail       *model.Trace
	DetailStatus EntryStatus
	// Loading is true while a fetch of the selected detail is running
	Loading bool

	// Err is the last surfaced error. Reads keep showing the last good
	// state when it is set.
	Err error

	CanUpdate bool
}

// DetailLoaded reports whether a trusted full record is displayed
func (v View) DetailLoaded() bool {
	return v.Detail != nil && v.DetailStatus == EntryFresh
}

// CanAccept mirrors the check applied by Accept
func (v View) CanAccept() bool {
	return v.CanUpdate && v.DetailLoaded() && model.CheckTransition(v.Detail, model.ReviewActionAccept, "") == nil
}

// CanReject mirrors the check applied by Reject, except for the reason
func (v View) CanReject() bool {
	return v.CanUpdate && v.DetailLoaded() && v.Detail.Status == types.EvalStatusPending
}

// CanReset mirrors the check applied by Reset
func (v View) CanReset() bool {
	return v.CanUpdate && v.DetailLoaded() && model.CheckTransition(v.Detail, model.ReviewActionReset, "") == nil
}

func detailKey(id model.TraceID) string {
	return string(id)
}

// Current returns a snapshot of the session
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		Filter:    s.filter,
		Summaries: s.list,
		Index:     s.index,
		Err:       s.err,
		CanUpdate: s.cap != nil && s.cap.CanUpdateRecords(),
	}
	if s.selectedID == "" {
		return v
	}

	v.Selected = s.list[s.index]
	entry, ok := s.details.Get(detailKey(s.selectedID))
	if ok {
		v.Detail = entry.Value.Clone()
	}
	v.DetailStatus = entry.Status
	v.Loading = s.inflight[s.selectedID] > 0
	if v.Err == nil && entry.Status == EntryError {
		v.Err = entry.Err
	}
	return v
}

// OnChange registers fn to be called with a fresh snapshot after every state
// change. fn runs outside the session lock.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) notify() {
	s.mu.Lock()
	v := s.viewLocked()
	listeners := append([]func(View){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Wait blocks until background detail loads and prefetches have finished
func (s *Session) Wait() {
	s.loads.Wait()
}

// SetFilter replaces the filter and refetches the list. The first trace
// becomes selected, or the selection is cleared when nothing matches. On
// failure the previous list stays displayed and the error is surfaced.
func (s *Session) SetFilter(ctx context.Context, f model.TraceFilter) error {
	s.mu.Lock()
	s.filter = f
	s.err = nil
	s.mu.Unlock()

	return s.fetchList(ctx, f, selectFirst)
}

// Refresh invalidates the list and the selected detail and refetches both,
// keeping the selection when it is still listed.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	f := s.filter
	id := s.selectedID
	s.err = nil
	s.mu.Unlock()

	s.summaries.Invalidate(f.Key())
	if id != "" {
		s.details.Invalidate(detailKey(id))
	}
	return s.fetchList(ctx, f, keepSelection)
}

type selectMode int

const (
	selectFirst selectMode = iota
	keepSelection
)

func (s *Session) fetchList(ctx context.Context, f model.TraceFilter, mode selectMode) error {
	key := f.Key()
	version := s.summaries.Begin(key)

	list, err := s.repo.ListSummaries(ctx, f)
	if err != nil {
		s.summaries.Fail(key, version, err)
		s.setErr(err)
		s.loadSelection(ctx)
		s.notify()
		return goerr.Wrap(err, "failed to list traces", goerr.V("filter", key))
	}
	if !s.summaries.Commit(key, version, list) {
		// an invalidation raced with this read; the newer read wins
		return nil
	}

	s.mu.Lock()
	if s.filter.Key() != key {
		// filter changed while fetching; the result is only cached
		s.mu.Unlock()
		return nil
	}

	prevID, prevIndex := s.selectedID, s.index
	s.list = list
	s.index, s.selectedID = -1, ""
	if len(list) > 0 {
		idx := 0
		if mode == keepSelection {
			idx = indexOf(list, prevID)
			if idx < 0 {
				idx = min(max(prevIndex, 0), len(list)-1)
			}
		}
		s.index, s.selectedID = idx, list[idx].ID
	}
	s.mu.Unlock()

	s.loadSelection(ctx)
	s.notify()
	return nil
}

func indexOf(list []*model.TraceSummary, id model.TraceID) int {
	if id == "" {
		return -1
	}
	for i, item := range list {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Navigate selects the trace at index i, loads its detail in the background
// and prefetches the following trace. It returns false and changes nothing
// when i is out of range.
func (s *Session) Navigate(ctx context.Context, i int) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.list) {
		s.mu.Unlock()
		return false
	}
	s.index, s.selectedID = i, s.list[i].ID
	s.err = nil
	s.mu.Unlock()

	s.loadSelection(ctx)
	s.notify()
	return true
}

// Next selects the following trace
func (s *Session) Next(ctx context.Context) bool {
	s.mu.Lock()
	i := s.index + 1
	s.mu.Unlock()
	return s.Navigate(ctx, i)
}

// Prev selects the preceding trace
func (s *Session) Prev(ctx context.Context) bool {
	s.mu.Lock()
	i := s.index - 1
	s.mu.Unlock()
	if i < 0 {
		return false
	}
	return s.Navigate(ctx, i)
}

// loadSelection starts the detail load of the selected trace and the
// prefetch of its successor when they are not cached
func (s *Session) loadSelection(ctx context.Context) {
	s.mu.Lock()
	id := s.selectedID
	var next model.TraceID
	if id != "" && s.index+1 < len(s.list) {
		next = s.list[s.index+1].ID
	}
	s.mu.Unlock()

	if id != "" && !s.details.IsFresh(detailKey(id)) {
		done := s.track(id)
		s.loads.Go(ctx, func(ctx context.Context) error {
			defer done()
			_ = s.loadDetail(ctx, id, false)
			s.notify()
			return nil
		})
	}

	if next != "" && !s.details.IsFresh(detailKey(next)) {
		done := s.track(next)
		s.loads.Go(ctx, func(ctx context.Context) error {
			defer done()
			if err := s.loadDetail(ctx, next, true); err != nil {
				logging.From(ctx).Warn("prefetch failed", model.TraceIDKey, next, "error", err)
			}
			s.notify()
			return nil
		})
	}
}

// track counts a running detail fetch of id until the returned func is called
func (s *Session) track(id model.TraceID) func() {
	s.mu.Lock()
	s.inflight[id]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.inflight[id]--; s.inflight[id] <= 0 {
				delete(s.inflight, id)
			}
			s.mu.Unlock()
		})
	}
}

// reload fetches the detail of id in the foreground
func (s *Session) reload(ctx context.Context, id model.TraceID) error {
	done := s.track(id)
	defer done()
	return s.loadDetail(ctx, id, false)
}

// loadDetail fetches the detail of id. Concurrent loads of the same slot
// version share one repository call. A failed prefetch leaves the slot
// untouched.
func (s *Session) loadDetail(ctx context.Context, id model.TraceID, prefetch bool) error {
	key := detailKey(id)
	version := s.details.Begin(key)
	flightKey := key + "@" + strconv.FormatUint(version, 10)

	_, err, _ := s.flight.Do(flightKey, func() (any, error) {
		trace, err := s.repo.GetDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		s.details.Commit(key, version, trace)
		return nil, nil
	})
	if err != nil {
		if !prefetch {
			s.details.Fail(key, version, err)
		}
		return goerr.Wrap(err, "failed to load trace detail", goerr.V(model.TraceIDKey, id))
	}
	return nil
}

// selection returns the selected ID and its trusted detail, or nil when the
// detail is not loaded
func (s *Session) selection() (model.TraceID, *model.Trace) {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()

	if id == "" {
		return "", nil
	}
	entry, ok := s.details.Get(detailKey(id))
	if !ok || entry.Status != EntryFresh {
		return id, nil
	}
	return id, entry.Value
}

func (s *Session) refuse(err error) error {
	s.setErr(err)
	s.notify()
	return err
}

func (s *Session) checkCapability() error {
	if s.cap == nil || !s.cap.CanUpdateRecords() {
		return goerr.Wrap(model.ErrPermissionDenied, "caller cannot update records")
	}
	return nil
}

// UpdateOutput overwrites the editable output of the selected trace. The
// cached detail is updated first and rolled back when the write fails; the
// rolled back record is the last confirmed one and stays actionable.
func (s *Session) UpdateOutput(ctx context.Context, text string) error {
	if err := s.checkCapability(); err != nil {
		return s.refuse(err)
	}

	id, detail := s.selection()
	if err := model.CheckEditable(detail); err != nil {
		return s.refuse(goerr.Wrap(err, "cannot edit output", goerr.V(model.TraceIDKey, id)))
	}

	key := detailKey(id)
	snapshot := detail.Clone()
	optimistic := detail.Clone()
	optimistic.EditableOutput = text
	s.details.Put(key, optimistic, EntryFresh)
	s.setErr(nil)
	s.notify()

	if err := s.repo.SetEditableOutput(ctx, id, text); err != nil {
		s.details.Put(key, snapshot, EntryFresh)
		return s.refuse(goerr.Wrap(err, "failed to update output", goerr.V(model.TraceIDKey, id)))
	}

	s.details.Invalidate(key)
	if err := s.reload(ctx, id); err != nil {
		s.setErr(err)
	}
	s.notify()
	return nil
}

// Accept moves the selected trace from Pending to Accepted
func (s *Session) Accept(ctx context.Context) error {
	return s.transition(ctx, model.ReviewActionAccept, "")
}

// Reject moves the selected trace from Pending to Rejected. reason must not
// be blank.
func (s *Session) Reject(ctx context.Context, reason string) error {
	return s.transition(ctx, model.ReviewActionReject, reason)
}

// Reset restores the original assistant response and moves the selected
// trace back to Pending
func (s *Session) Reset(ctx context.Context) error {
	return s.transition(ctx, model.ReviewActionReset, "")
}

func (s *Session) transition(ctx context.Context, action model.ReviewAction, reason string) error {
	if err := s.checkCapability(); err != nil {
		return s.refuse(err)
	}

	id, detail := s.selection()
	if err := model.CheckTransition(detail, action, reason); err != nil {
		return s.refuse(goerr.Wrap(err, "review action refused", goerr.V(model.TraceIDKey, id)))
	}

	var err error
	switch action {
	case model.ReviewActionAccept:
		err = s.repo.SetStatus(ctx, id, types.EvalStatusAccepted, nil)
	case model.ReviewActionReject:
		err = s.repo.SetStatus(ctx, id, types.EvalStatusRejected, &reason)
	case model.ReviewActionReset:
		err = s.repo.SetEditableOutput(ctx, id, detail.AssistantResponse)
		if err == nil {
			err = s.repo.SetStatus(ctx, id, types.EvalStatusPending, nil)
		}
	}

	// the record may have partially changed even on failure
	s.summaries.InvalidateAll()
	s.details.Invalidate(detailKey(id))

	if err != nil {
		if rerr := s.reload(ctx, id); rerr != nil {
			logging.From(ctx).Warn("failed to reload trace after failed write", model.TraceIDKey, id, "error", rerr)
		}
		_ = s.refuse(err)
		return goerr.Wrap(err, "failed to apply review action",
			goerr.V(model.TraceIDKey, id),
			goerr.V(model.ActionKey, action))
	}

	s.mu.Lock()
	f := s.filter
	s.err = nil
	s.mu.Unlock()

	// The write went through. A failed list refetch keeps the previous list
	// displayed and is surfaced through View.Err only.
	_ = s.fetchList(ctx, f, keepSelection)

	// the written trace may have left the filtered list; keep its slot
	// fresh anyway for the next visit
	if err := s.reload(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to reload trace after write", model.TraceIDKey, id, "error", err)
	}
	s.notify()
	return nil
}
