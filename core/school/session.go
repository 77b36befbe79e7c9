package school

import (
	"context"
	"fmt"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

// State of a client session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateSchoolJoined
	StateUserSelected
	StateTeacherActive
	StateCoordinatorActive
	StateLoggedOut
)

var stateNames = [...]string{
	StateUninitialized:     "Uninitialized",
	StateInitializing:      "Initializing",
	StateAuthenticated:     "Authenticated",
	StateSchoolJoined:      "SchoolJoined",
	StateUserSelected:      "UserSelected",
	StateTeacherActive:     "TeacherActive",
	StateCoordinatorActive: "CoordinatorActive",
	StateLoggedOut:         "LoggedOut",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Active reports whether a user profile is in use.
func (s State) Active() bool {
	return s == StateTeacherActive || s == StateCoordinatorActive
}

var (
	wrongPINMsg    = "incorrect PIN"
	notSignedInMsg = "no active user"

	errOfflineCoordinator = errors.New("coordinator features need a connection")
)

// Session drives the tenancy lifecycle of one client: sign in or join a school,
// pick a profile, switch users and log out.
type Session struct {
	mu     sync.Mutex
	svc    *Service
	store  *Store
	gw     Gateway
	cache  LocalCache // optional
	logger core.Logger

	state       State
	auth        *AuthSession
	userID      string
	activeClass ClassRef
	schoolPIN   string
	offline     bool
}

func NewSession(svc *Service, cache LocalCache, logger core.Logger) *Session {
	vala.BeginValidation().Validate(
		vala.IsNotNil(svc, "svc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	sess := &Session{
		svc:    svc,
		store:  svc.store,
		gw:     svc.gw,
		cache:  cache,
		logger: logger,
	}
	svc.onCommit = sess.persist
	return sess
}

func (s *Session) Service() *Service { return s.svc }
func (s *Session) Store() *Store     { return s.store }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Offline reports whether the loaded data came from the local cache after a network failure.
func (s *Session) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

func (s *Session) Syncing() bool {
	return s.svc.Syncing()
}

// Active returns the selected user profile.
func (s *Session) Active() (Teacher, bool) {
	s.mu.Lock()
	id, state := s.userID, s.state
	s.mu.Unlock()
	if !state.Active() {
		return Teacher{}, false
	}
	return s.store.Teacher(id)
}

func (s *Session) ActiveClass() ClassRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeClass
}

func (s *Session) transitionErr(op string) error {
	return core.NewValidationError(errors.Errorf("cannot %s while %s", op, s.state))
}

// Start asks the gateway for an existing session and loads its school.
// When the network is unavailable the last cached snapshot is used instead.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return s.transitionErr("start")
	}
	s.state = StateInitializing

	auth, err := s.gw.CurrentSession(ctx)
	if err != nil {
		err = core.ClassifyTransportError(err)
		if core.IsNetwork(err) && s.restoreFromCache(ctx) {
			s.state = StateSchoolJoined
			s.resumeUser(ctx)
			return nil
		}
		s.state = StateLoggedOut
		return errors.Wrap(err, "probing session")
	}

	if auth == nil {
		s.state = StateLoggedOut
		cached, ok := s.loadCache(ctx)
		if !ok || cached.SchoolPIN == "" {
			return nil
		}
		// resume an anonymous school join
		if err = s.join(ctx, cached.SchoolPIN); err != nil {
			if core.IsNetwork(err) && s.restoreFromCache(ctx) {
				s.state = StateSchoolJoined
				s.resumeUser(ctx)
				return nil
			}
			s.logger.Warn(fmt.Sprintf("resuming school join: %v", err), err)
			return nil
		}
		s.state = StateSchoolJoined
		s.resumeUser(ctx)
		s.saveCache(ctx)
		return nil
	}

	if err = s.loadSchool(ctx, auth.SchoolID); err != nil {
		if core.IsNetwork(err) && s.restoreFromCache(ctx) {
			s.auth = auth
			s.state = StateAuthenticated
			s.resumeUser(ctx)
			return nil
		}
		s.state = StateLoggedOut
		return err
	}
	s.auth = auth
	s.state = StateAuthenticated
	s.resumeUser(ctx)
	s.saveCache(ctx)
	return nil
}

// SignUp registers a new school with its coordinator and signs the coordinator in.
func (s *Session) SignUp(ctx context.Context, nc NewCoordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoggedOut {
		return s.transitionErr("sign up")
	}
	if err := nc.Validate(s.svc.validate); err != nil {
		return s.svc.invalid(err)
	}

	auth, err := s.gw.SignUp(ctx, nc)
	if err != nil {
		return errors.Wrap(core.ClassifyTransportError(err), "signing up")
	}
	return s.authenticated(ctx, auth)
}

func (s *Session) SignIn(ctx context.Context, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoggedOut {
		return s.transitionErr("sign in")
	}
	email = core.CleanString(email, true /* lower */)
	if email == "" || password == "" {
		return core.NewValidationError(errors.New("email and password are required"))
	}

	auth, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return errors.Wrap(core.ClassifyTransportError(err), "signing in")
	}
	return s.authenticated(ctx, auth)
}

func (s *Session) authenticated(ctx context.Context, auth AuthSession) error {
	if err := s.loadSchool(ctx, auth.SchoolID); err != nil {
		return err
	}
	s.auth = &auth
	s.offline = false
	s.state = StateAuthenticated
	s.saveCache(ctx)
	return nil
}

// JoinSchool loads a school anonymously with its shared PIN.
func (s *Session) JoinSchool(ctx context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoggedOut {
		return s.transitionErr("join a school")
	}
	pin = core.CleanString(pin)
	if pin == "" {
		return core.NewValidationError(errEmptySchoolPIN, core.FieldError{Field: "pin", Error: errEmptySchoolPIN.Error()})
	}

	if err := s.join(ctx, pin); err != nil {
		return err
	}
	s.state = StateSchoolJoined
	s.saveCache(ctx)
	return nil
}

func (s *Session) join(ctx context.Context, pin string) error {
	sch, err := s.gw.GetSchoolByPIN(ctx, pin)
	if err != nil {
		return errors.Wrap(core.ClassifyTransportError(err), "finding school")
	}
	if err = s.loadSchool(ctx, sch.ID); err != nil {
		return err
	}
	s.schoolPIN = pin
	s.offline = false
	return nil
}

func (s *Session) loadSchool(ctx context.Context, schoolID string) error {
	s.svc.begin()
	data, err := s.gw.GetAllDataForSchool(ctx, schoolID)
	s.svc.end()
	if err != nil {
		return errors.Wrap(core.ClassifyTransportError(err), "loading school")
	}
	if err = s.store.LoadSchool(data); err != nil {
		return errors.Wrap(err, "loading school")
	}
	return nil
}

// SelectUser picks a teacher or coordinator profile after checking its PIN.
// A wrong PIN leaves the session unchanged.
func (s *Session) SelectUser(ctx context.Context, userID, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated && s.state != StateSchoolJoined {
		return s.transitionErr("select a user")
	}
	t, ok := s.store.Teacher(userID)
	if !ok {
		return core.NewNotFoundError("teacher", userID)
	}
	if !s.svc.VerifyPIN(userID, pin) {
		return core.NewAuthError(wrongPINMsg)
	}

	s.state = StateUserSelected
	s.activate(t)
	s.saveCache(ctx)
	return nil
}

func (s *Session) activate(t Teacher) {
	s.userID = t.ID
	s.activeClass = t.Class()
	if t.IsCoordinator() {
		s.state = StateCoordinatorActive
	} else {
		s.state = StateTeacherActive
	}
}

// resumeUser reactivates the profile remembered by the local cache, if it still exists.
func (s *Session) resumeUser(ctx context.Context) {
	cached, ok := s.loadCache(ctx)
	if !ok || cached.LoggedInUserID == "" {
		return
	}
	if t, ok := s.store.Teacher(cached.LoggedInUserID); ok {
		s.activate(t)
	}
}

// SwitchClass changes the class the active user works on.
// Another teacher's class needs that teacher's PIN unless the actor is the coordinator.
func (s *Session) SwitchClass(c ClassRef, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return s.transitionErr("switch class")
	}

	var known bool
	for _, cls := range s.store.Classes() {
		if cls.Equal(c) {
			c, known = cls, true
			break
		}
	}
	if !known {
		return core.NewNotFoundError("class", c.String())
	}

	if owner, ok := s.store.ClassOwner(c); ok && owner.ID != s.userID && s.state != StateCoordinatorActive {
		if !s.svc.VerifyPIN(owner.ID, pin) {
			return core.NewAuthError(wrongPINMsg)
		}
	}
	s.activeClass = c
	return nil
}

// SwitchUser returns to profile selection. Loaded data is kept as is.
func (s *Session) SwitchUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() && s.state != StateUserSelected {
		return s.transitionErr("switch user")
	}
	s.userID = ""
	s.activeClass = ClassRef{}
	s.state = StateSchoolJoined
	s.saveCache(ctx)
	return nil
}

// Logout ends the session and wipes both the store and the local cache.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUninitialized, StateInitializing, StateLoggedOut:
		return s.transitionErr("log out")
	}

	if s.auth != nil {
		if err := s.gw.SignOut(ctx); err != nil {
			s.logger.Warn(fmt.Sprintf("signing out: %v", err), err)
		}
	}
	s.store.Clear()
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn(fmt.Sprintf("clearing local cache: %v", err), err)
		}
	}
	s.auth = nil
	s.userID = ""
	s.activeClass = ClassRef{}
	s.schoolPIN = ""
	s.offline = false
	s.state = StateLoggedOut
	return nil
}

// Active user operations

func (s *Session) actor() (Teacher, ClassRef, error) {
	s.mu.Lock()
	id, state, class := s.userID, s.state, s.activeClass
	s.mu.Unlock()
	if !state.Active() {
		return Teacher{}, ClassRef{}, core.NewAuthError(notSignedInMsg)
	}
	t, ok := s.store.Teacher(id)
	if !ok {
		return Teacher{}, ClassRef{}, core.NewNotFoundError("teacher", id)
	}
	return t, class, nil
}

func (s *Session) coordinator() (Teacher, error) {
	t, _, err := s.actor()
	if err != nil {
		return Teacher{}, err
	}
	if !t.IsCoordinator() {
		return Teacher{}, core.NewAuthError(coordinatorOnlyMsg)
	}
	if s.Offline() {
		return Teacher{}, core.NewNetworkError(errOfflineCoordinator)
	}
	return t, nil
}

// Roster of the active class.
func (s *Session) Roster() []Student {
	return s.store.Roster(s.ActiveClass())
}

// MarkAttendance saves the active user's roll call for date.
func (s *Session) MarkAttendance(ctx context.Context, date string, statuses map[string]AttendanceStatus) ([]AttendanceRecord, error) {
	t, _, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.svc.SaveAttendance(ctx, t.ID, date, statuses)
}

// SubmitAttendance sends the active class' totals for date to the coordinator.
func (s *Session) SubmitAttendance(ctx context.Context, date string, statuses map[string]AttendanceStatus) (DailySubmission, error) {
	t, class, err := s.actor()
	if err != nil {
		return DailySubmission{}, err
	}
	return s.svc.SubmitAttendanceToCoordinator(ctx, t.ID, date, class, s.store.Roster(class), statuses)
}

func (s *Session) AddTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if _, err := s.coordinator(); err != nil {
		return Teacher{}, err
	}
	return s.svc.AddTeacher(ctx, nt)
}

func (s *Session) RemoveTeacher(ctx context.Context, id string) error {
	if _, err := s.coordinator(); err != nil {
		return err
	}
	return s.svc.RemoveTeacher(ctx, id)
}

func (s *Session) RecordTeacherAttendance(ctx context.Context, date string, statuses map[string]AttendanceStatus) ([]TeacherAttendanceRecord, error) {
	c, err := s.coordinator()
	if err != nil {
		return nil, err
	}
	return s.svc.SaveTeacherAttendance(ctx, c.ID, date, statuses)
}

func (s *Session) ChangeSchoolPIN(ctx context.Context, pin string) (School, error) {
	c, err := s.coordinator()
	if err != nil {
		return School{}, err
	}
	sch, err := s.svc.SetSchoolPIN(ctx, c.ID, pin)
	if err != nil {
		return School{}, err
	}
	s.mu.Lock()
	if s.schoolPIN != "" {
		s.schoolPIN = sch.PIN
	}
	s.mu.Unlock()
	s.persist(ctx)
	return sch, nil
}

// DailySummary is the coordinator's view of date.
func (s *Session) DailySummary(date string) (DailySummary, error) {
	if _, err := s.coordinator(); err != nil {
		return DailySummary{}, err
	}
	return s.store.DailySummary(date), nil
}

// Local cache

func (s *Session) loadCache(ctx context.Context) (CachedState, bool) {
	if s.cache == nil {
		return CachedState{}, false
	}
	return s.cache.Load(ctx)
}

// restoreFromCache must be called with s.mu held.
func (s *Session) restoreFromCache(ctx context.Context) bool {
	cached, ok := s.loadCache(ctx)
	if !ok || cached.Data.School.ID == "" {
		return false
	}
	if err := s.store.LoadSchool(cached.Data); err != nil {
		s.logger.Warn(fmt.Sprintf("restoring local cache: %v", err), err)
		return false
	}
	s.schoolPIN = cached.SchoolPIN
	s.offline = true
	return true
}

// saveCache must be called with s.mu held.
func (s *Session) saveCache(ctx context.Context) {
	if s.cache == nil || !s.store.IsLoaded() {
		return
	}
	var userID string
	if s.state.Active() {
		userID = s.userID
	}
	state := CachedState{Data: s.store.Snapshot(), LoggedInUserID: userID, SchoolPIN: s.schoolPIN}
	if err := s.cache.Save(ctx, state); err != nil {
		s.logger.Warn(fmt.Sprintf("saving local cache: %v", err), err)
	}
}

// persist is the service commit hook.
func (s *Session) persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCache(ctx)
}
