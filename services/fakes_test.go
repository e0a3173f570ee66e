package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dosada05/esports-arena/clock"
	"github.com/Dosada05/esports-arena/metrics"
	"github.com/Dosada05/esports-arena/models"
	"github.com/Dosada05/esports-arena/repositories"
)

// memStore - in-memory замена PostgreSQL для тестов сервисов.
type memStore struct {
	mu            sync.Mutex
	nextID        int
	users         map[int]*models.User
	teams         map[int]*models.Team
	tournaments   map[int]*models.Tournament
	registrations map[int]*models.TournamentRegistration
	waitlist      map[int]*models.WaitlistEntry
	notifications map[int]*models.Notification
	invites       map[int]*models.Invite

	claimErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[int]*models.User{},
		teams:         map[int]*models.Team{},
		tournaments:   map[int]*models.Tournament{},
		registrations: map[int]*models.TournamentRegistration{},
		waitlist:      map[int]*models.WaitlistEntry{},
		notifications: map[int]*models.Notification{},
		invites:       map[int]*models.Invite{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func cloneMap[T any](src map[int]*T) map[int]*T {
	dst := make(map[int]*T, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

type memSnapshot struct {
	users         map[int]*models.User
	teams         map[int]*models.Team
	tournaments   map[int]*models.Tournament
	registrations map[int]*models.TournamentRegistration
	waitlist      map[int]*models.WaitlistEntry
	notifications map[int]*models.Notification
	invites       map[int]*models.Invite
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users:         cloneMap(s.users),
		teams:         cloneMap(s.teams),
		tournaments:   cloneMap(s.tournaments),
		registrations: cloneMap(s.registrations),
		waitlist:      cloneMap(s.waitlist),
		notifications: cloneMap(s.notifications),
		invites:       cloneMap(s.invites),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.teams = snap.teams
	s.tournaments = snap.tournaments
	s.registrations = snap.registrations
	s.waitlist = snap.waitlist
	s.notifications = snap.notifications
	s.invites = snap.invites
}

// fakeTx откатывает изменения хранилища, если fn вернула ошибку.
type fakeTx struct {
	store *memStore
	calls int32
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	atomic.AddInt32(&f.calls, 1)
	snap := f.store.snapshot()
	if err := fn(nil); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

// --- seed helpers ---

func (s *memStore) addUser(role models.UserRole) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.id(), Nickname: "user", Role: role}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addTeam(name string, captain *models.User) *models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Team{ID: s.id(), Name: name, CaptainID: captain.ID}
	s.teams[t.ID] = t
	teamID := t.ID
	s.users[captain.ID].TeamID = &teamID
	return t
}

func (s *memStore) addTournament(organizerID int, date time.Time, capacity, filled int) *models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Tournament{ID: s.id(), Name: "Spring Cup", OrganizerID: organizerID, Date: date, Capacity: capacity, Filled: filled}
	s.tournaments[t.ID] = t
	return t
}

func (s *memStore) addRegistration(tournamentID, teamID int, status models.RegistrationStatus) *models.TournamentRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &models.TournamentRegistration{ID: s.id(), TournamentID: tournamentID, TeamID: teamID, Status: status}
	s.registrations[r.ID] = r
	return r
}

func (s *memStore) addWaitlistEntry(tournamentID, teamID, position int) *models.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.WaitlistEntry{ID: s.id(), TournamentID: tournamentID, TeamID: teamID, Position: position}
	s.waitlist[e.ID] = e
	return e
}

func (s *memStore) tournament(id int) models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tournaments[id]
}

func (s *memStore) registration(id int) models.TournamentRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.registrations[id]
}

func (s *memStore) entry(id int) models.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.waitlist[id]
}

func (s *memStore) notificationsFor(userID int) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

// --- tournaments ---

type fakeTournamentRepo struct{ s *memStore }

func (r fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[t.OrganizerID]; !ok {
		return repositories.ErrTournamentInvalidOrg
	}
	t.ID = r.s.id()
	c := *t
	r.s.tournaments[t.ID] = &c
	return nil
}

func (r fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.DeletedAt != nil {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r fakeTournamentRepo) SoftDelete(ctx context.Context, id int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.DeletedAt != nil {
		return repositories.ErrTournamentNotFound
	}
	t.DeletedAt = &at
	return nil
}

func (r fakeTournamentRepo) DecrementFilled(ctx context.Context, exec repositories.SQLExecutor, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.DeletedAt != nil {
		return 0, repositories.ErrTournamentNotFound
	}
	if t.Filled > 0 {
		t.Filled--
	}
	return t.Filled, nil
}

func (r fakeTournamentRepo) IncrementFilled(ctx context.Context, exec repositories.SQLExecutor, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.DeletedAt != nil || t.Filled >= t.Capacity {
		return 0, repositories.ErrTournamentFull
	}
	t.Filled++
	return t.Filled, nil
}

func (r fakeTournamentRepo) ReserveSlot(ctx context.Context, exec repositories.SQLExecutor, id int, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.DeletedAt != nil {
		return 0, repositories.ErrTournamentFull
	}
	held := 0
	for _, e := range r.s.waitlist {
		if e.TournamentID == id && e.OfferActive(now) {
			held++
		}
	}
	if t.Filled+held >= t.Capacity {
		return 0, repositories.ErrTournamentFull
	}
	t.Filled++
	return t.Filled, nil
}

// --- teams & users ---

type fakeTeamRepo struct{ s *memStore }

func (r fakeTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[team.CaptainID]
	if !ok {
		return repositories.ErrTeamCaptainInvalid
	}
	for _, t := range r.s.teams {
		if t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
		if t.CaptainID == team.CaptainID {
			return repositories.ErrTeamCaptainConflict
		}
	}
	if u.TeamID != nil {
		return repositories.ErrUserAlreadyInTeam
	}
	team.ID = r.s.id()
	c := *team
	r.s.teams[team.ID] = &c
	teamID := team.ID
	u.TeamID = &teamID
	return nil
}

func (r fakeTeamRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (r fakeTeamRepo) GetByCaptainID(ctx context.Context, captainID int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teams {
		if t.CaptainID == captainID {
			c := *t
			return &c, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.id()
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r fakeUserRepo) JoinTeam(ctx context.Context, exec repositories.SQLExecutor, userID, teamID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[teamID]; !ok {
		return repositories.ErrUserTeamInvalid
	}
	u, ok := r.s.users[userID]
	if !ok || u.TeamID != nil {
		return repositories.ErrUserAlreadyInTeam
	}
	u.TeamID = &teamID
	return nil
}

// --- registrations ---

type fakeRegistrationRepo struct{ s *memStore }

func (r fakeRegistrationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, reg *models.TournamentRegistration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.registrations {
		if existing.TournamentID == reg.TournamentID && existing.TeamID == reg.TeamID {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = r.s.id()
	c := *reg
	r.s.registrations[reg.ID] = &c
	return nil
}

func (r fakeRegistrationRepo) GetByID(ctx context.Context, id int) (*models.TournamentRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	c := *reg
	return &c, nil
}

func (r fakeRegistrationRepo) GetByTournamentAndTeam(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamID int) (*models.TournamentRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reg := range r.s.registrations {
		if reg.TournamentID == tournamentID && reg.TeamID == teamID {
			c := *reg
			return &c, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (r fakeRegistrationRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.TournamentRegistration
	for _, reg := range r.s.registrations {
		if reg.TournamentID == tournamentID {
			c := *reg
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeRegistrationRepo) TransitionStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.RegistrationStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registrations[id]
	if !ok || reg.Status != from {
		return repositories.ErrRegistrationStatusChanged
	}
	reg.Status = to
	reg.UpdatedAt = at
	return nil
}

// --- waitlist ---

type fakeWaitlistRepo struct{ s *memStore }

func (r fakeWaitlistRepo) Add(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[tournamentID]; !ok {
		return nil, repositories.ErrWaitlistReferenceInvalid
	}
	maxPos := 0
	for _, e := range r.s.waitlist {
		if e.TournamentID != tournamentID {
			continue
		}
		if e.TeamID == teamID {
			return nil, repositories.ErrWaitlistConflict
		}
		if e.Position > maxPos {
			maxPos = e.Position
		}
	}
	e := &models.WaitlistEntry{ID: r.s.id(), TournamentID: tournamentID, TeamID: teamID, Position: maxPos + 1}
	r.s.waitlist[e.ID] = e
	c := *e
	return &c, nil
}

func (r fakeWaitlistRepo) GetByTournamentAndTeam(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamID int) (*models.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.waitlist {
		if e.TournamentID == tournamentID && e.TeamID == teamID {
			c := *e
			return &c, nil
		}
	}
	return nil, repositories.ErrWaitlistEntryNotFound
}

func (r fakeWaitlistRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.WaitlistEntry
	for _, e := range r.s.waitlist {
		if e.TournamentID == tournamentID {
			c := *e
			out = append(out, &c)
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []*models.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].ID < entries[j].ID
	})
}

// ClaimNext выполняется целиком под мьютексом, как атомарный UPDATE в базе.
func (r fakeWaitlistRepo) ClaimNext(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, offerExpiry time.Time) (*models.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.claimErr != nil {
		return nil, r.s.claimErr
	}
	var candidates []*models.WaitlistEntry
	for _, e := range r.s.waitlist {
		if e.TournamentID == tournamentID && !e.Offered {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, repositories.ErrWaitlistEmpty
	}
	sortEntries(candidates)
	next := candidates[0]
	next.Offered = true
	expiry := offerExpiry
	next.OfferExpiry = &expiry
	c := *next
	return &c, nil
}

func (r fakeWaitlistRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.waitlist[id]; !ok {
		return repositories.ErrWaitlistEntryNotFound
	}
	delete(r.s.waitlist, id)
	return nil
}

// --- notifications ---

type fakeNotificationRepo struct{ s *memStore }

func (r fakeNotificationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[n.UserID]; !ok {
		return repositories.ErrNotificationUserInvalid
	}
	n.ID = r.s.id()
	c := *n
	r.s.notifications[n.ID] = &c
	return nil
}

func (r fakeNotificationRepo) ListByUser(ctx context.Context, userID int, unreadOnly bool, limit int) ([]*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.s.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeNotificationRepo) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return nil
}

// --- invites ---

type fakeInviteRepo struct{ s *memStore }

func (r fakeInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[invite.TeamID]; !ok {
		return repositories.ErrInviteTeamInvalid
	}
	for _, existing := range r.s.invites {
		if existing.Token == invite.Token {
			return repositories.ErrInviteTokenConflict
		}
	}
	invite.ID = r.s.id()
	c := *invite
	r.s.invites[invite.ID] = &c
	return nil
}

func (r fakeInviteRepo) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invites {
		if inv.Token == token {
			c := *inv
			return &c, nil
		}
	}
	return nil, repositories.ErrInviteNotFound
}

func (r fakeInviteRepo) ListActiveByTeamID(ctx context.Context, teamID int, now time.Time) ([]*models.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Invite
	for _, inv := range r.s.invites {
		if inv.TeamID == teamID && inv.ExpiresAt.After(now) {
			c := *inv
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r fakeInviteRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invites[id]; !ok {
		return repositories.ErrInviteNotFound
	}
	delete(r.s.invites, id)
	return nil
}

func (r fakeInviteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, inv := range r.s.invites {
		if !inv.ExpiresAt.After(now) {
			delete(r.s.invites, id)
			n++
		}
	}
	return n, nil
}

// --- publisher ---

type publishedMessage struct {
	UserID  int
	Type    string
	Payload interface{}
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *fakePublisher) PublishToUser(userID int, messageType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{UserID: userID, Type: messageType, Payload: payload})
}

func (p *fakePublisher) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

// --- environment ---

type testEnv struct {
	store         *memStore
	tx            *fakeTx
	publisher     *fakePublisher
	metrics       *metrics.Metrics
	notifications NotificationService
	waitlist      WaitlistService
	tournaments   TournamentService
	registrations RegistrationService
	teams         TeamService
	invites       InviteService
}

const testPublicURL = "https://arena.example"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(now time.Time) *testEnv {
	store := newMemStore()
	tx := &fakeTx{store: store}
	pub := &fakePublisher{}
	clk := clock.NewFixed(now)
	logger := discardLogger()
	m := metrics.New()

	notifications := NewNotificationService(fakeNotificationRepo{store}, pub, clk, logger)
	waitlist := NewWaitlistService(WaitlistServiceDeps{
		Tx:               tx,
		TournamentRepo:   fakeTournamentRepo{store},
		TeamRepo:         fakeTeamRepo{store},
		RegistrationRepo: fakeRegistrationRepo{store},
		WaitlistRepo:     fakeWaitlistRepo{store},
		Notifications:    notifications,
		Clock:            clk,
		Metrics:          m,
		Logger:           logger,
	}, DefaultWaitlistOfferWindow, testPublicURL)

	return &testEnv{
		store:         store,
		tx:            tx,
		publisher:     pub,
		metrics:       m,
		notifications: notifications,
		waitlist:      waitlist,
		tournaments: NewTournamentService(TournamentServiceDeps{
			Tx:               tx,
			TournamentRepo:   fakeTournamentRepo{store},
			TeamRepo:         fakeTeamRepo{store},
			RegistrationRepo: fakeRegistrationRepo{store},
			Waitlist:         waitlist,
			Clock:            clk,
			Metrics:          m,
			Logger:           logger,
		}, WithdrawalPolicy{PenaltyWindow: DefaultWithdrawalPenaltyWindow}),
		registrations: NewRegistrationService(RegistrationServiceDeps{
			Tx:               tx,
			TournamentRepo:   fakeTournamentRepo{store},
			TeamRepo:         fakeTeamRepo{store},
			RegistrationRepo: fakeRegistrationRepo{store},
			Notifications:    notifications,
			Clock:            clk,
			Logger:           logger,
		}, testPublicURL),
		teams:   NewTeamService(tx, fakeTeamRepo{store}, logger),
		invites: NewInviteService(tx, fakeInviteRepo{store}, fakeTeamRepo{store}, fakeUserRepo{store}, clk, 7*24*time.Hour, logger),
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
