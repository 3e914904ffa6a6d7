package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/api/catalog"
	"github.com/langchou/rentdesk/internal/metrics"
	"github.com/langchou/rentdesk/internal/models"
	"github.com/langchou/rentdesk/internal/pricing"
	"github.com/langchou/rentdesk/internal/reservation"
	"github.com/langchou/rentdesk/internal/state"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("reservation session not found")
	// ErrCatalogUnavailable 目录拉取失败，需显式重新加载
	ErrCatalogUnavailable = errors.New("vehicle catalog unavailable")
)

// Publisher 会话更新推送
type Publisher interface {
	PublishSession(sessionID string, msgType string, data interface{})
	CloseSession(sessionID string)
}

// SessionView 会话当前表单与计算结果
type SessionView struct {
	ID        string             `json:"id"`
	Form      reservation.Form   `json:"form"`
	Quote     *reservation.Quote `json:"quote,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// QuoteRequest 无状态报价请求
type QuoteRequest struct {
	Pickup    *time.Time       `json:"pickup"`
	Return    *time.Time       `json:"return"`
	VehicleID models.VehicleID `json:"vehicle_id"`
	Charges   []string         `json:"charges"`
	Discount  *decimal.Decimal `json:"discount"`
}

type session struct {
	form      reservation.Form
	updatedAt time.Time
}

// ReservationService 预约服务
// 持有车辆目录状态机和内存中的表单会话；每个会话的表单只在这里被替换
type ReservationService struct {
	logger    *zap.Logger
	catalog   *state.CatalogMachine
	options   []models.ChargeOption
	metrics   *metrics.Metrics
	publisher Publisher

	sessionTTL time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewReservationService 创建预约服务
func NewReservationService(
	logger *zap.Logger,
	source state.Source,
	options []models.ChargeOption,
	m *metrics.Metrics,
	sessionTTL time.Duration,
) *ReservationService {
	svc := &ReservationService{
		logger:     logger,
		options:    options,
		metrics:    m,
		sessionTTL: sessionTTL,
		sessions:   make(map[uuid.UUID]*session),
	}
	svc.catalog = state.NewCatalogMachine(source, svc.onCatalogStateChange)
	return svc
}

// SetPublisher 设置会话推送
func (s *ReservationService) SetPublisher(p Publisher) {
	s.publisher = p
}

// Start 启动时拉取一次目录，失败只记录日志，等待用户显式重新加载
func (s *ReservationService) Start(ctx context.Context) {
	vehicles, err := s.loadCatalog(ctx, false)
	if err != nil {
		s.logger.Error("Failed to load vehicle catalog", zap.Error(err))
		return
	}
	s.logger.Info("Vehicle catalog loaded", zap.Int("vehicles", len(vehicles)))
}

// ReloadCatalog 重新拉取目录
func (s *ReservationService) ReloadCatalog(ctx context.Context) ([]models.Vehicle, error) {
	return s.loadCatalog(ctx, true)
}

// CatalogStatus 目录状态
func (s *ReservationService) CatalogStatus() state.Snapshot {
	return s.catalog.Snapshot()
}

// Vehicles 按车型筛选目录
func (s *ReservationService) Vehicles(ctx context.Context, vehicleType string) ([]models.Vehicle, error) {
	vehicles, err := s.loadCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	if vehicleType == "" {
		vehicleType = models.AllTypes
	}
	return pricing.FilterByType(vehicles, vehicleType), nil
}

// VehicleTypes 车型下拉选项，首项为 All
func (s *ReservationService) VehicleTypes(ctx context.Context) ([]string, error) {
	vehicles, err := s.loadCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	return append([]string{models.AllTypes}, pricing.VehicleTypes(vehicles)...), nil
}

// ChargeOptions 附加费用选项
func (s *ReservationService) ChargeOptions() []models.ChargeOption {
	return s.options
}

// CreateSession 创建新的预约会话
func (s *ReservationService) CreateSession() *SessionView {
	id := uuid.New()
	sess := &session{form: reservation.NewForm(), updatedAt: time.Now()}

	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsActive.Set(float64(count))
	s.logger.Debug("Reservation session created", zap.String("session_id", id.String()))

	// 新表单未选车辆，不需要目录
	q, _ := sess.form.Quote(nil)
	return &SessionView{ID: id.String(), Form: sess.form, Quote: q, UpdatedAt: sess.updatedAt}
}

// GetSession 获取会话及最新计算结果
func (s *ReservationService) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sid, sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	q, err := s.quote(ctx, sess.form)
	view := &SessionView{ID: sid.String(), Form: sess.form, Quote: q, UpdatedAt: sess.updatedAt}
	return view, err
}

// ApplyEvent 应用一次表单事件并重新计算
// 事件被接受后表单即更新；计算失败时返回错误，视图中不含报价
func (s *ReservationService) ApplyEvent(ctx context.Context, id string, event reservation.Event) (*SessionView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sid, _, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	var vehicles []models.Vehicle
	if event.NeedsCatalog() {
		if vehicles, err = s.loadCatalog(ctx, false); err != nil {
			return nil, err
		}
	} else {
		vehicles, _ = s.catalog.Vehicles()
	}

	s.mu.Lock()
	sess, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	form, err := sess.form.Apply(event, vehicles, s.options)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess.form = form
	sess.updatedAt = time.Now()
	updatedAt := sess.updatedAt
	s.mu.Unlock()

	q, qerr := s.quote(ctx, form)
	view := &SessionView{ID: sid.String(), Form: form, Quote: q, UpdatedAt: updatedAt}

	if s.publisher != nil {
		if qerr != nil {
			s.publisher.PublishSession(view.ID, "error", map[string]string{"error": errorMessage(qerr)})
		} else {
			s.publisher.PublishSession(view.ID, "summary", view)
		}
	}
	return view, qerr
}

// Quote 无状态报价
func (s *ReservationService) Quote(ctx context.Context, req QuoteRequest) (*reservation.Quote, error) {
	form := reservation.NewForm().WithPickup(req.Pickup).WithReturn(req.Return)

	for _, name := range req.Charges {
		option, ok := reservation.FindOption(s.options, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", reservation.ErrUnknownCharge, name)
		}
		form = form.ToggleCharge(option, true)
	}

	var err error
	if req.Discount != nil {
		if form, err = form.WithDiscount(*req.Discount); err != nil {
			return nil, err
		}
	}

	if req.VehicleID != "" {
		vehicles, err := s.loadCatalog(ctx, false)
		if err != nil {
			s.metrics.QuotesTotal.WithLabelValues("catalog_error").Inc()
			return nil, err
		}
		if form, err = form.WithVehicle(req.VehicleID, vehicles); err != nil {
			return nil, err
		}
	}

	return s.quote(ctx, form)
}

// Print 输出会话的预约单
func (s *ReservationService) Print(ctx context.Context, id string, w io.Writer) error {
	view, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return reservation.Print(w, view.Form, view.Quote)
}

// PruneSessions 清理超过 TTL 未更新的会话
func (s *ReservationService) PruneSessions(now time.Time) int {
	if s.sessionTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	var expired []uuid.UUID
	for id, sess := range s.sessions {
		if now.Sub(sess.updatedAt) > s.sessionTTL {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsActive.Set(float64(count))

	// 过期会话的订阅者一并断开
	if s.publisher != nil {
		for _, id := range expired {
			s.publisher.CloseSession(id.String())
		}
	}
	return len(expired)
}

// RunSessionJanitor 定期清理过期会话
func (s *ReservationService) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.PruneSessions(now); n > 0 {
				s.logger.Info("Pruned expired reservation sessions", zap.Int("removed", n))
			}
		}
	}
}

// errorMessage 推送给前端的错误文案
func errorMessage(err error) string {
	var fetchErr *catalog.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.UserMessage()
	}
	return err.Error()
}

func (s *ReservationService) lookup(id string) (uuid.UUID, *session, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, nil, ErrSessionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return uuid.Nil, nil, ErrSessionNotFound
	}
	snapshot := *sess
	return sid, &snapshot, nil
}

// quote 计算报价；已选车辆时需要目录
func (s *ReservationService) quote(ctx context.Context, form reservation.Form) (*reservation.Quote, error) {
	var vehicles []models.Vehicle
	if form.VehicleID != "" {
		var err error
		if vehicles, err = s.loadCatalog(ctx, false); err != nil {
			s.metrics.QuotesTotal.WithLabelValues("catalog_error").Inc()
			return nil, err
		}
	}

	q, err := form.Quote(vehicles)
	if err != nil {
		var rateErr *pricing.MissingRateError
		if errors.As(err, &rateErr) {
			s.metrics.QuotesTotal.WithLabelValues("missing_rate").Inc()
			s.logger.Warn("Selected vehicle has incomplete rates",
				zap.String("vehicle_id", rateErr.VehicleID.String()),
				zap.Strings("missing", rateErr.Fields),
			)
		}
		return nil, err
	}
	s.metrics.QuotesTotal.WithLabelValues("ok").Inc()
	return q, nil
}

func (s *ReservationService) loadCatalog(ctx context.Context, reload bool) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	var err error
	if reload {
		vehicles, err = s.catalog.Reload(ctx)
	} else {
		vehicles, err = s.catalog.Load(ctx)
	}
	if err != nil {
		if errors.Is(err, state.ErrCatalogLoading) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	s.metrics.CatalogVehicles.Set(float64(len(vehicles)))
	return vehicles, nil
}

// onCatalogStateChange 在状态机锁内调用，不能回调 CatalogMachine
func (s *ReservationService) onCatalogStateChange(from, to string) {
	switch to {
	case state.StateReady:
		s.metrics.CatalogFetchesTotal.WithLabelValues("success").Inc()
	case state.StateFailed:
		s.metrics.CatalogFetchesTotal.WithLabelValues("failure").Inc()
	}
	s.logger.Info("Vehicle catalog state changed", zap.String("from", from), zap.String("to", to))
}
