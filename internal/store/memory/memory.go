// Package memory provides a mutex-guarded in-memory implementation of the
// store contract. It backs the engine tests and the zero-dependency dev mode.
package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

// Store keeps everything in process memory. A single mutex serializes all
// mutations, which trivially satisfies the atomicity the contract asks for.
type Store struct {
	mu sync.RWMutex

	sessions  map[uuid.UUID]*model.Session
	questions map[uuid.UUID][]model.SessionQuestion
	// answers: session -> question -> set of selected option ids
	answers map[uuid.UUID]map[int64]map[int64]struct{}

	bank    map[int64]*model.Question
	options map[int64][]model.AnswerOption

	users      map[int64]*model.User
	byExternal map[int64]int64

	nextQuestionID int64
	nextOptionID   int64
	nextUserID     int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions:   make(map[uuid.UUID]*model.Session),
		questions:  make(map[uuid.UUID][]model.SessionQuestion),
		answers:    make(map[uuid.UUID]map[int64]map[int64]struct{}),
		bank:       make(map[int64]*model.Question),
		options:    make(map[int64][]model.AnswerOption),
		users:      make(map[int64]*model.User),
		byExternal: make(map[int64]int64),
	}
}

var _ store.Store = (*Store)(nil)

// ─── SessionStore ──────────────────────────────────────────────────────────

func (m *Store) CreateSession(ctx context.Context, s *model.Session, questionIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.UserID == s.UserID && existing.Status == model.SessionStatusActive {
			return store.ErrConflict
		}
	}

	cp := *s
	m.sessions[cp.ID] = &cp

	rows := make([]model.SessionQuestion, 0, len(questionIDs))
	for i, qid := range questionIDs {
		rows = append(rows, model.SessionQuestion{
			SessionID:  cp.ID,
			QuestionID: qid,
			Index:      i + 1,
		})
	}
	m.questions[cp.ID] = rows
	m.answers[cp.ID] = make(map[int64]map[int64]struct{})
	return nil
}

func (m *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) GetActiveSessionForUser(ctx context.Context, userID int64) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.Session
	for _, s := range m.sessions {
		if s.UserID != userID || s.Status != model.SessionStatusActive {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Store) SetCurrentIndex(ctx context.Context, id uuid.UUID, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.CurrentIndex = index
	return nil
}

func (m *Store) QuestionAt(ctx context.Context, id uuid.UUID, index int) (*model.SessionQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.questions[id]
	if !ok || index < 1 || index > len(rows) {
		return nil, store.ErrNotFound
	}
	cp := rows[index-1]
	return &cp, nil
}

func (m *Store) SessionQuestions(ctx context.Context, id uuid.UUID) ([]model.SessionQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]model.SessionQuestion, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *Store) SetFlag(ctx context.Context, id uuid.UUID, index int, flagged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.questions[id]
	if !ok || index < 1 || index > len(rows) {
		return store.ErrNotFound
	}
	rows[index-1].Flagged = flagged
	return nil
}

func (m *Store) ClearFlags(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.questions[id]
	if !ok {
		return store.ErrNotFound
	}
	for i := range rows {
		rows[i].Flagged = false
	}
	return nil
}

func (m *Store) ReplaceAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQuestion, ok := m.answers[id]
	if !ok {
		return store.ErrNotFound
	}
	byQuestion[questionID] = map[int64]struct{}{answerID: {}}
	return nil
}

func (m *Store) ToggleAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQuestion, ok := m.answers[id]
	if !ok {
		return false, store.ErrNotFound
	}
	set := byQuestion[questionID]
	if set == nil {
		set = make(map[int64]struct{})
		byQuestion[questionID] = set
	}
	if _, selected := set[answerID]; selected {
		delete(set, answerID)
		return false, nil
	}
	set[answerID] = struct{}{}
	return true, nil
}

func (m *Store) SelectedAnswerIDs(ctx context.Context, id uuid.UUID, questionID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQuestion, ok := m.answers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	set := byQuestion[questionID]
	ids := make([]int64, 0, len(set))
	for aid := range set {
		ids = append(ids, aid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Store) ClearAnswers(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.answers[id]; !ok {
		return store.ErrNotFound
	}
	m.answers[id] = make(map[int64]map[int64]struct{})
	return nil
}

func (m *Store) ClearQuestionAnswers(ctx context.Context, id uuid.UUID, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQuestion, ok := m.answers[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(byQuestion, questionID)
	return nil
}

func (m *Store) Progress(ctx context.Context, id uuid.UUID) (model.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.questions[id]
	if !ok {
		return model.Progress{}, store.ErrNotFound
	}
	byQuestion := m.answers[id]
	p := model.Progress{Total: len(rows)}
	for _, sq := range rows {
		if sq.Flagged {
			p.Flagged++
		}
		if len(byQuestion[sq.QuestionID]) > 0 {
			p.Answered++
		}
	}
	return p, nil
}

func (m *Store) FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, grade *store.GradeRecord, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.Status != model.SessionStatusActive {
		return store.ErrStaleState
	}
	s.Status = status
	ts := finishedAt
	s.FinishedAt = &ts
	if grade != nil {
		correct, percent := grade.Correct, grade.Percent
		s.CorrectCount = &correct
		s.ScorePercent = &percent
		if grade.MarkFailure {
			if u, ok := m.users[s.UserID]; ok {
				failedAt := finishedAt
				u.LastFailedAt = &failedAt
			}
		}
	}
	return nil
}

func (m *Store) MarkWarningSent(ctx context.Context, id uuid.UUID, thresholdMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	switch thresholdMinutes {
	case 10:
		s.Warn10Sent = true
	case 5:
		s.Warn5Sent = true
	case 1:
		s.Warn1Sent = true
	}
	return nil
}

func (m *Store) ListActiveExamSessions(ctx context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && s.Mode == model.SessionModeExam && s.ExpiresAt != nil {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ─── QuestionStore ─────────────────────────────────────────────────────────

func (m *Store) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.bank[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *Store) AnswersForQuestion(ctx context.Context, questionID int64) ([]model.AnswerOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opts := m.options[questionID]
	out := make([]model.AnswerOption, len(opts))
	copy(out, opts)
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *Store) CorrectAnswerIDs(ctx context.Context, questionID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, opt := range m.options[questionID] {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Store) CountActiveBySection(ctx context.Context, section model.Section) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.bank {
		if q.Active && q.Section == section {
			n++
		}
	}
	return n, nil
}

func (m *Store) RandomActiveIDs(ctx context.Context, section model.Section, n int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pool []int64
	for _, q := range m.bank {
		if q.Active && q.Section == section {
			pool = append(pool, q.ID)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}

func (m *Store) CreateQuestion(ctx context.Context, q *model.Question, options []model.AnswerOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuestionID++
	q.ID = m.nextQuestionID
	cp := *q
	m.bank[q.ID] = &cp

	stored := make([]model.AnswerOption, 0, len(options))
	for i := range options {
		m.nextOptionID++
		opt := options[i]
		opt.ID = m.nextOptionID
		opt.QuestionID = q.ID
		options[i].ID = opt.ID
		stored = append(stored, opt)
	}
	m.options[q.ID] = stored
	return nil
}

func (m *Store) FindQuestionByText(ctx context.Context, text string) (*model.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.bank {
		if q.Text == text {
			cp := *q
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) UpdateQuestionMeta(ctx context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.bank[q.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Explanation = q.Explanation
	existing.ReferenceURL = q.ReferenceURL
	existing.ReferenceTitle = q.ReferenceTitle
	return nil
}

// ─── UserStore ─────────────────────────────────────────────────────────────

func (m *Store) UpsertUser(ctx context.Context, u *model.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if id, ok := m.byExternal[u.ExternalID]; ok {
		existing := m.users[id]
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		existing.Username = u.Username
		existing.LastSeenAt = now
		return id, nil
	}
	m.nextUserID++
	cp := *u
	cp.ID = m.nextUserID
	cp.CreatedAt = now
	cp.LastSeenAt = now
	m.users[cp.ID] = &cp
	m.byExternal[cp.ExternalID] = cp.ID
	return cp.ID, nil
}

func (m *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Store) LastFailureAt(ctx context.Context, userID int64) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.LastFailedAt == nil {
		return nil, nil
	}
	ts := *u.LastFailedAt
	return &ts, nil
}

// ─── StatsStore ────────────────────────────────────────────────────────────

func (m *Store) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *Store) CountActiveUsers(ctx context.Context, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, s := range m.sessions {
		if inWindow(s.StartedAt, from, to) {
			seen[s.UserID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *Store) ModeUsage(ctx context.Context, from, to time.Time) ([]store.ModeUsageRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type agg struct {
		sessions int
		users    map[int64]struct{}
	}
	byMode := map[model.SessionMode]*agg{}
	for _, s := range m.sessions {
		if !inWindow(s.StartedAt, from, to) {
			continue
		}
		a := byMode[s.Mode]
		if a == nil {
			a = &agg{users: make(map[int64]struct{})}
			byMode[s.Mode] = a
		}
		a.sessions++
		a.users[s.UserID] = struct{}{}
	}
	var rows []store.ModeUsageRow
	for mode, a := range byMode {
		rows = append(rows, store.ModeUsageRow{Mode: mode, Sessions: a.sessions, Users: len(a.users)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Mode < rows[j].Mode })
	return rows, nil
}

func (m *Store) SubmittedExamRows(ctx context.Context, from, to time.Time) ([]store.SubmittedExamRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []store.SubmittedExamRow
	for _, s := range m.sessions {
		if s.Mode != model.SessionModeExam || s.Status != model.SessionStatusSubmitted {
			continue
		}
		if s.FinishedAt == nil || !inWindow(*s.FinishedAt, from, to) {
			continue
		}
		row := store.SubmittedExamRow{StartedAt: s.StartedAt, FinishedAt: s.FinishedAt}
		if s.ScorePercent != nil {
			v := *s.ScorePercent
			row.ScorePercent = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func inWindow(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}
