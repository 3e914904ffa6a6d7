package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/rentdesk/internal/models"
)

// 目录加载状态
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateReady   = "ready"
	StateFailed  = "failed"
)

// 事件常量
const (
	EventFetch  = "fetch"
	EventLoaded = "loaded"
	EventFail   = "fail"
	EventReload = "reload"
)

// fetchTimeout 数据源自身没有超时时的上限
const fetchTimeout = 30 * time.Second

// ErrCatalogLoading 目录尚未加载完成
var ErrCatalogLoading = errors.New("vehicle catalog is loading")

// Source 车辆目录数据源
type Source interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// Snapshot 目录状态快照
type Snapshot struct {
	State    string    `json:"state"`
	Since    time.Time `json:"since"`
	Vehicles int       `json:"vehicles"`
	Error    string    `json:"error,omitempty"`
}

// CatalogMachine 车辆目录加载状态机
// idle -> loading -> ready | failed；失败后只能由显式 reload 重新拉取
type CatalogMachine struct {
	loadMu sync.Mutex // 串行化拉取

	mu       sync.RWMutex
	fsm      *fsm.FSM
	source   Source
	vehicles []models.Vehicle
	err      error
	since    time.Time

	onStateChange func(from, to string)
}

// NewCatalogMachine 创建状态机
func NewCatalogMachine(source Source, onStateChange func(from, to string)) *CatalogMachine {
	m := &CatalogMachine{
		source:        source,
		since:         time.Now(),
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventFetch, Src: []string{StateIdle}, Dst: StateLoading},
			{Name: EventLoaded, Src: []string{StateLoading}, Dst: StateReady},
			{Name: EventFail, Src: []string{StateLoading}, Dst: StateFailed},
			{Name: EventReload, Src: []string{StateReady, StateFailed}, Dst: StateLoading},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 当前状态
func (m *CatalogMachine) CurrentState() string {
	return m.fsm.Current()
}

// Snapshot 获取状态快照
func (m *CatalogMachine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		State:    m.fsm.Current(),
		Since:    m.since,
		Vehicles: len(m.vehicles),
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}

// Vehicles 返回已加载的目录，不触发拉取
// 返回的切片只读
func (m *CatalogMachine) Vehicles() ([]models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.fsm.Current() {
	case StateReady:
		return m.vehicles, nil
	case StateFailed:
		return nil, m.err
	default:
		return nil, ErrCatalogLoading
	}
}

// Load 首次调用时拉取目录；已就绪或已失败时直接返回结果
func (m *CatalogMachine) Load(ctx context.Context) ([]models.Vehicle, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if m.CurrentState() != StateIdle {
		return m.Vehicles()
	}
	return m.fetch(ctx, EventFetch)
}

// Reload 显式重新拉取目录（用户操作触发）
func (m *CatalogMachine) Reload(ctx context.Context) ([]models.Vehicle, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	event := EventReload
	if m.CurrentState() == StateIdle {
		event = EventFetch
	}
	return m.fetch(ctx, event)
}

func (m *CatalogMachine) fetch(ctx context.Context, event string) ([]models.Vehicle, error) {
	if err := m.trigger(event); err != nil {
		return nil, err
	}

	// 目录为全局共享，请求取消不能让目录进入 failed
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	vehicles, err := m.source.ListVehicles(fetchCtx)
	cancel()

	m.mu.Lock()
	if err != nil {
		m.err = err
		m.vehicles = nil
	} else {
		m.err = nil
		m.vehicles = vehicles
	}
	m.mu.Unlock()

	if err != nil {
		if terr := m.trigger(EventFail); terr != nil {
			return nil, terr
		}
		return nil, err
	}
	if terr := m.trigger(EventLoaded); terr != nil {
		return nil, terr
	}
	return vehicles, nil
}

func (m *CatalogMachine) trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	m.since = time.Now()
	return nil
}
