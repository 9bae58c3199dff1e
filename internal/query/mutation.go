package query

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPending возвращается, если мутация уже выполняется
var ErrPending = errors.New("mutation is already pending")

// State состояние мутации
type State int

const (
	Idle State = iota
	Pending
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// Mutation выполняет изменяющую операцию и помнит её последнее состояние.
// Повторный запуск во время выполнения отклоняется.
type Mutation struct {
	mu        sync.Mutex
	state     State
	err       error
	updatedAt time.Time
}

// Run выполняет fn и возвращает её ошибку
func (m *Mutation) Run(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	if m.state == Pending {
		m.mu.Unlock()
		return ErrPending
	}
	m.state = Pending
	m.err = nil
	m.updatedAt = time.Now()
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = Failed
	} else {
		m.state = Success
	}
	m.err = err
	m.updatedAt = time.Now()
	m.mu.Unlock()

	return err
}

// State возвращает состояние и ошибку последнего запуска
func (m *Mutation) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

// IsPending сообщает, выполняется ли мутация сейчас
func (m *Mutation) IsPending() bool {
	s, _ := m.State()
	return s == Pending
}
