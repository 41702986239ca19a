package discussion

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrGateBusy 已有确认框在等待时，新的请求被直接丢弃
var ErrGateBusy = errors.New("a confirmation is already pending")

// Confirmer 弹出确认框并返回用户选择
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Gate 破坏性操作前的确认，同一时刻只允许一个确认在进行
type Gate struct {
	confirmer Confirmer
	busy      atomic.Bool
}

func NewGate(c Confirmer) *Gate {
	return &Gate{confirmer: c}
}

// Guard 确认后执行 action，执行完成才释放；取消时不执行
// 返回值 confirmed 表示用户是否确认
func (g *Gate) Guard(ctx context.Context, prompt string, action func(context.Context) error) (confirmed bool, err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return false, ErrGateBusy
	}
	defer g.busy.Store(false)

	if !g.confirmer.Confirm(ctx, prompt) {
		return false, nil
	}
	return true, action(ctx)
}

// Pending 是否有确认正在进行
func (g *Gate) Pending() bool {
	return g.busy.Load()
}
