package handlers

import (
	"context"
	"net/http"
	"time"

	"alarmmate"
	"alarmmate/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockSchedule struct {
	weekly    alarmmate.WeeklyAlarmSet
	weeklyErr error
	day       alarmmate.DaySchedule
	dayErr    error
	setErr    error
	derived   map[alarmmate.Weekday]*int
	applyErr  error
	today     alarmmate.TimeOfDay
	todayOK   bool
	todayErr  error

	lastSetDay  alarmmate.Weekday
	lastSetTime alarmmate.TimeOfDay
	lastDets    []alarmmate.DetectedSlot
	lastFrameW  float64
	lastFrameH  float64
	setCalls    int
	applyCalls  int
}

func (m *mockSchedule) GetWeekly(ctx context.Context) (alarmmate.WeeklyAlarmSet, error) {
	return m.weekly, m.weeklyErr
}
func (m *mockSchedule) Get(ctx context.Context, day alarmmate.Weekday) (alarmmate.DaySchedule, error) {
	return m.day, m.dayErr
}
func (m *mockSchedule) SetAlarmForDay(ctx context.Context, day alarmmate.Weekday, t alarmmate.TimeOfDay) error {
	m.setCalls++
	m.lastSetDay = day
	m.lastSetTime = t
	return m.setErr
}
func (m *mockSchedule) ApplyDetectionResult(ctx context.Context, dets []alarmmate.DetectedSlot, frameW, frameH float64) (map[alarmmate.Weekday]*int, error) {
	m.applyCalls++
	m.lastDets = dets
	m.lastFrameW = frameW
	m.lastFrameH = frameH
	return m.derived, m.applyErr
}
func (m *mockSchedule) TodayFireTime(ctx context.Context, now time.Time) (alarmmate.TimeOfDay, bool, error) {
	return m.today, m.todayOK, m.todayErr
}

type mockScheduler struct {
	pending      *alarmmate.PendingAlarm
	recomputeErr error
	rearmErr     error
	testErr      error

	recomputeCalls int
	rearmCalls     int
	cancelCalls    int
	lastTestIn     time.Duration
}

func (m *mockScheduler) Recompute(ctx context.Context) (*alarmmate.PendingAlarm, error) {
	m.recomputeCalls++
	return m.pending, m.recomputeErr
}
func (m *mockScheduler) Rearm(ctx context.Context, resolvedAt time.Time) (*alarmmate.PendingAlarm, error) {
	m.rearmCalls++
	return m.pending, m.rearmErr
}
func (m *mockScheduler) Cancel(ctx context.Context) {
	m.cancelCalls++
}
func (m *mockScheduler) Pending() *alarmmate.PendingAlarm {
	return m.pending
}
func (m *mockScheduler) ScheduleTest(ctx context.Context, in time.Duration) (*alarmmate.PendingAlarm, error) {
	m.lastTestIn = in
	return m.pending, m.testErr
}

type mockGate struct {
	snapshot   service.GateSnapshot
	openErr    error
	submitErr  error
	successErr error
	game       string
	gameErr    error
	selectErr  error

	lastInput    service.ProofInput
	lastSelected string
	successCalls int
	notices      chan service.GateNotice
}

func (m *mockGate) Run(ctx context.Context)           {}
func (m *mockGate) Recover(ctx context.Context) error { return nil }
func (m *mockGate) State() service.GateSnapshot       { return m.snapshot }
func (m *mockGate) OpenProof(ctx context.Context) (service.GateSnapshot, error) {
	return m.snapshot, m.openErr
}
func (m *mockGate) SubmitInput(ctx context.Context, in service.ProofInput) (service.GateSnapshot, error) {
	m.lastInput = in
	return m.snapshot, m.submitErr
}
func (m *mockGate) ReportSuccess(ctx context.Context) error {
	m.successCalls++
	return m.successErr
}
func (m *mockGate) Subscribe() (<-chan service.GateNotice, func()) {
	if m.notices == nil {
		m.notices = make(chan service.GateNotice, 4)
	}
	return m.notices, func() {}
}
func (m *mockGate) SelectedGame(ctx context.Context) (string, error) {
	return m.game, m.gameErr
}
func (m *mockGate) SelectGame(ctx context.Context, tag string) error {
	m.lastSelected = tag
	return m.selectErr
}

type mockKeeper struct {
	startCalls int
	stopCalls  int
}

func (m *mockKeeper) Run(ctx context.Context, tick time.Duration) {}
func (m *mockKeeper) StartTone()                                  { m.startCalls++ }
func (m *mockKeeper) StopTone()                                   { m.stopCalls++ }

type mockEventLog struct {
	resp     []alarmmate.AlarmEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]alarmmate.AlarmEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
