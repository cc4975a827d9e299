package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/events"
)

var errUnique = &pgconn.PgError{Code: "23505"}

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	nextID int
	since  time.Time
	due    []domain.ReminderTarget
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*domain.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return errUnique
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	clone := *u
	f.byID[u.ID] = &clone
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) ClearLineUserID(_ context.Context, lineUserID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.byID {
		if u.LineUserID != nil && *u.LineUserID == lineUserID {
			u.LineUserID = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) ListReminderTargets(_ context.Context, since time.Time) ([]domain.ReminderTarget, error) {
	f.since = since
	return f.due, nil
}

func (f *fakeUsers) add(u domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := u
	f.byID[u.ID] = &clone
	return &clone
}

type fakeResets struct {
	byToken map[string]*domain.PasswordResetToken
}

func newFakeResets() *fakeResets { return &fakeResets{byToken: map[string]*domain.PasswordResetToken{}} }

func (f *fakeResets) Create(_ context.Context, t *domain.PasswordResetToken) error {
	t.ID = "reset-" + t.Token
	clone := *t
	f.byToken[t.Token] = &clone
	return nil
}

func (f *fakeResets) GetByToken(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	t, ok := f.byToken[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (f *fakeResets) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	for _, t := range f.byToken {
		if t.ID == id {
			if t.UsedAt != nil {
				return false, nil
			}
			t.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

type fakeFamily struct {
	mu      sync.Mutex
	members map[string]*domain.FamilyMember
	nextID  int
	users   *fakeUsers
}

func newFakeFamily(users *fakeUsers) *fakeFamily {
	return &fakeFamily{members: map[string]*domain.FamilyMember{}, users: users}
}

func (f *fakeFamily) Create(_ context.Context, m *domain.FamilyMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.members {
		if existing.LinkCode != nil && m.LinkCode != nil && *existing.LinkCode == *m.LinkCode {
			return errUnique
		}
	}
	f.nextID++
	m.ID = fmt.Sprintf("member-%d", f.nextID)
	clone := *m
	f.members[m.ID] = &clone
	return nil
}

func (f *fakeFamily) GetByID(_ context.Context, patientID, id string) (*domain.FamilyMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.PatientID != patientID {
		return nil, pgx.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (f *fakeFamily) ListByPatient(_ context.Context, patientID string) ([]domain.FamilyMember, error) {
	return f.filter(func(m *domain.FamilyMember) bool { return m.PatientID == patientID }), nil
}

func (f *fakeFamily) ListNotifiable(_ context.Context, patientID string) ([]domain.FamilyMember, error) {
	return f.filter(func(m *domain.FamilyMember) bool {
		return m.PatientID == patientID && m.NotifyEnabled && m.Linked()
	}), nil
}

func (f *fakeFamily) filter(keep func(*domain.FamilyMember) bool) []domain.FamilyMember {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FamilyMember
	for _, m := range f.members {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeFamily) Update(_ context.Context, m *domain.FamilyMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.members[m.ID]
	if !ok || existing.PatientID != m.PatientID {
		return pgx.ErrNoRows
	}
	existing.Name, existing.Relationship, existing.NotifyEnabled = m.Name, m.Relationship, m.NotifyEnabled
	return nil
}

func (f *fakeFamily) Delete(_ context.Context, patientID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.PatientID != patientID {
		return pgx.ErrNoRows
	}
	delete(f.members, id)
	return nil
}

func (f *fakeFamily) SetLinkCode(_ context.Context, patientID, id, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.PatientID != patientID || m.Linked() {
		return pgx.ErrNoRows
	}
	m.LinkCode, m.LinkCodeExpiresAt = &code, &expiresAt
	return nil
}

func (f *fakeFamily) GetInvite(_ context.Context, code string, now time.Time) (*domain.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.LinkCode != nil && *m.LinkCode == code && !m.Linked() && m.LinkCodeExpiresAt.After(now) {
			patient := f.users.byID[m.PatientID]
			return &domain.Invite{Code: code, PatientDisplayName: patient.DisplayName, MemberName: m.Name, ExpiresAt: *m.LinkCodeExpiresAt}, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// ConsumeLinkCode mirrors the conditional update: the check and the write happen
// under one lock.
func (f *fakeFamily) ConsumeLinkCode(_ context.Context, code, lineUserID string, now time.Time) (*domain.FamilyMember, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.LinkCode == nil || *m.LinkCode != code || m.Linked() || !m.LinkCodeExpiresAt.After(now) {
			continue
		}
		for _, other := range f.members {
			if other.PatientID == m.PatientID && other.LineUserID != nil && *other.LineUserID == lineUserID {
				return nil, false, errUnique
			}
		}
		id := lineUserID
		m.LineUserID, m.LinkedAt = &id, &now
		m.LinkCode, m.LinkCodeExpiresAt = nil, nil
		clone := *m
		return &clone, true, nil
	}
	return nil, false, nil
}

func (f *fakeFamily) ClearLineUserID(_ context.Context, lineUserID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.members {
		if m.LineUserID != nil && *m.LineUserID == lineUserID {
			m.LineUserID, m.LinkedAt = nil, nil
			n++
		}
	}
	return n, nil
}

type fakeSelfLinks struct {
	mu    sync.Mutex
	codes map[string]*domain.SelfLinkCode
	users *fakeUsers
}

func newFakeSelfLinks(users *fakeUsers) *fakeSelfLinks {
	return &fakeSelfLinks{codes: map[string]*domain.SelfLinkCode{}, users: users}
}

func (f *fakeSelfLinks) Create(_ context.Context, c *domain.SelfLinkCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.codes[c.Code]; exists {
		return errUnique
	}
	clone := *c
	f.codes[c.Code] = &clone
	return nil
}

func (f *fakeSelfLinks) Consume(_ context.Context, code, lineUserID string, now time.Time) (*domain.SelfLinkCode, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[code]
	if !ok || c.ConsumedAt != nil || !c.ExpiresAt.After(now) {
		return nil, false, nil
	}
	id := lineUserID
	c.ConsumedAt, c.LineUserID = &now, &id
	if u, ok := f.users.byID[c.UserID]; ok {
		u.LineUserID = &id
	}
	clone := *c
	return &clone, true, nil
}

type fakeVitals struct {
	mu      sync.Mutex
	records []domain.Vital
	limit   int
}

func (f *fakeVitals) Create(_ context.Context, v *domain.Vital) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.ID = fmt.Sprintf("vital-%d", len(f.records)+1)
	f.records = append(f.records, *v)
	return nil
}

func (f *fakeVitals) ListByPatient(_ context.Context, patientID string, limit int) ([]domain.Vital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	var out []domain.Vital
	for _, v := range f.records {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeShares struct {
	pairs map[[2]string]bool
	users *fakeUsers
}

func newFakeShares(users *fakeUsers) *fakeShares {
	return &fakeShares{pairs: map[[2]string]bool{}, users: users}
}

func (f *fakeShares) Create(_ context.Context, patientID, providerID string) error {
	f.pairs[[2]string{patientID, providerID}] = true
	return nil
}

func (f *fakeShares) Delete(_ context.Context, patientID, providerID string) error {
	key := [2]string{patientID, providerID}
	if !f.pairs[key] {
		return pgx.ErrNoRows
	}
	delete(f.pairs, key)
	return nil
}

func (f *fakeShares) Exists(_ context.Context, patientID, providerID string) (bool, error) {
	return f.pairs[[2]string{patientID, providerID}], nil
}

func (f *fakeShares) ListPatients(_ context.Context, providerID string) ([]domain.User, error) {
	var out []domain.User
	for key := range f.pairs {
		if key[1] == providerID {
			out = append(out, *f.users.byID[key[0]])
		}
	}
	return out, nil
}

type fakeProfiles struct {
	saved map[string]*domain.Profile
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*domain.Profile, error) {
	p, ok := f.saved[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p *domain.Profile) error {
	if f.saved == nil {
		f.saved = map[string]*domain.Profile{}
	}
	f.saved[p.UserID] = p
	return nil
}

type fakeContacts struct {
	saved []domain.ContactMessage
}

func (f *fakeContacts) Create(_ context.Context, msg *domain.ContactMessage) error {
	msg.ID = "contact-1"
	f.saved = append(f.saved, *msg)
	return nil
}

type sentMessage struct {
	kind   string
	target string
	text   string
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
	err    error
}

func (f *fakeMessenger) Reply(_ context.Context, replyToken, text string) error {
	return f.record("reply", replyToken, text)
}

func (f *fakeMessenger) Push(_ context.Context, to, text string) error {
	return f.record("push", to, text)
}

func (f *fakeMessenger) record(kind, target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil || f.failTo[target] {
		return fmt.Errorf("send to %s failed", target)
	}
	f.sent = append(f.sent, sentMessage{kind: kind, target: target, text: text})
	return nil
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeDeduper struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func (f *fakeDeduper) Claim(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return true, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if id == "" {
		return true, nil
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func (f *fakeDeduper) Release(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
	f.released = append(f.released, id)
	return nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
	handlers  map[events.EventType][]events.EventHandler
}

func (d *recordingDispatcher) Publish(ctx context.Context, e events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, e)
	handlers := d.handlers[e.Type]
	d.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, e)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(t events.EventType, h events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[events.EventType][]events.EventHandler{}
	}
	d.handlers[t] = append(d.handlers[t], h)
}

func fixedNow(t time.Time) Clock { return func() time.Time { return t } }

func ptr[T any](v T) *T { return &v }
