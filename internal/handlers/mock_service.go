package handlers

import (
	"context"
	"net/http"
	"time"

	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/models"
	"cartridge_conditioner/internal/phase"
	"cartridge_conditioner/internal/service"

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

type mockCommands struct {
	autoPhase   phase.Phase
	autoErr     error
	manualErr   error
	stopErr     error
	lastAuto    service.AutoRequest
	lastManual  service.ManualRequest
	autoCalls   int
	manualCalls int
	stopCalls   int
}

func (m *mockCommands) SubmitAuto(ctx context.Context, req service.AutoRequest) (phase.Phase, error) {
	m.autoCalls++
	m.lastAuto = req
	return m.autoPhase, m.autoErr
}
func (m *mockCommands) SubmitManual(ctx context.Context, req service.ManualRequest) (phase.Phase, error) {
	m.manualCalls++
	m.lastManual = req
	return phase.Manual, m.manualErr
}
func (m *mockCommands) EmergencyStop(ctx context.Context) error {
	m.stopCalls++
	return m.stopErr
}

type mockMonitoring struct {
	snap device.Snapshot
	cfg  service.ConfigInfo
	err  error
}

func (m *mockMonitoring) Snapshot(ctx context.Context) (device.Snapshot, error) {
	return m.snap, m.err
}
func (m *mockMonitoring) DeviceConfig() service.ConfigInfo {
	return m.cfg
}

type mockEventLog struct {
	resp     []models.DeviceEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
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
