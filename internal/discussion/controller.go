package discussion

import (
	"context"
	"errors"
	"strings"
	"sync"

	"recipethread/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPlaceholder = "[deleted]"
	deletePrompt       = "Delete this comment?"
	voteLookupLimit    = 4
)

// Controller 评论树控制器
// 所有修改都先写后端再重新加载受影响的父列表，本地从不就地修改评论内容
type Controller struct {
	recipeID    uint
	backend     Backend
	loader      *ThreadLoader
	identity    Identity
	presenter   Presenter
	gate        *Gate
	log         *zap.Logger
	placeholder string

	mu    sync.Mutex
	nodes map[uint]*node
	seq   uint64
}

// Option 控制器可选配置
type Option func(*Controller)

// WithLogger 注入日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithPlaceholder 已删除评论显示的文字
func WithPlaceholder(text string) Option {
	return func(c *Controller) { c.placeholder = text }
}

// NewController 创建某个菜谱的评论树控制器
func NewController(recipeID uint, backend Backend, identity Identity, presenter Presenter, opts ...Option) *Controller {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if identity == nil {
		identity = StaticIdentity(uuid.Nil)
	}
	c := &Controller{
		recipeID:    recipeID,
		backend:     backend,
		identity:    identity,
		presenter:   presenter,
		gate:        NewGate(presenter),
		log:         zap.NewNop(),
		placeholder: defaultPlaceholder,
		nodes: map[uint]*node{
			RootID: {state: Expanded},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loader = NewThreadLoader(backend, recipeID, c.log)
	return c
}

// Load 加载顶层评论
func (c *Controller) Load(ctx context.Context) error {
	if err := c.refresh(ctx, RootID); err != nil {
		c.report(err)
		return err
	}
	return nil
}

// Refresh 并发重新加载顶层及所有已展开的节点
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	keys := make([]uint, 0, len(c.nodes))
	for id, n := range c.nodes {
		if id == RootID || n.state == Expanded {
			keys = append(keys, id)
		}
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			return c.refresh(gctx, key)
		})
	}
	if err := g.Wait(); err != nil {
		c.report(err)
		return err
	}
	return nil
}

// RequestExpand 展开节点并加载回复，child_count 为 0 的节点不可展开
func (c *Controller) RequestExpand(ctx context.Context, id uint) error {
	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || id == RootID {
		c.mu.Unlock()
		return unknownNode("comment.expand", id)
	}
	if n.state != Collapsed || n.view.ChildCount == 0 {
		c.mu.Unlock()
		return nil
	}
	n.state = ExpandedLoading
	parent := n.parent
	c.mu.Unlock()
	c.presenter.NodeChanged(id)

	if err := c.refresh(ctx, id); err != nil {
		return c.recover(ctx, err, parent)
	}
	return nil
}

// RequestCollapse 折叠节点，进行中的加载结果将被丢弃
func (c *Controller) RequestCollapse(id uint) {
	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || id == RootID || n.state == Collapsed {
		c.mu.Unlock()
		return
	}
	c.collapseLocked(n)
	c.mu.Unlock()
	c.presenter.NodeChanged(id)
}

// RequestReply 发表评论，parentID 为 nil 时发表顶层评论
// 成功后重新加载父节点的子列表，必要时先展开父节点
func (c *Controller) RequestReply(ctx context.Context, parentID *uint, content string) error {
	const op = "comment.reply"
	key := RootID
	if parentID != nil {
		key = *parentID
	}
	me := c.identity.CurrentUserID()

	c.mu.Lock()
	n, ok := c.nodes[key]
	if !ok {
		c.mu.Unlock()
		return unknownNode(op, key)
	}
	n.replyDraft = content
	grand := n.parent
	deleted := n.view.Deleted
	c.mu.Unlock()

	switch {
	case me == uuid.Nil:
		return c.fail(models.NewError(models.KindValidation, op, "sign in to comment"))
	case strings.TrimSpace(content) == "":
		return c.fail(models.NewError(models.KindValidation, op, "content must not be empty"))
	case key != RootID && deleted:
		return c.fail(models.NewError(models.KindValidation, op, "cannot reply to a deleted comment"))
	}

	if _, err := c.backend.Create(ctx, c.recipeID, parentID, me, content); err != nil {
		return c.recover(ctx, err, grand)
	}

	c.mu.Lock()
	if n, ok := c.nodes[key]; ok {
		n.replyDraft = ""
		if n.state == Collapsed {
			n.state = ExpandedLoading
		}
	}
	c.mu.Unlock()
	c.presenter.NodeChanged(key)

	if err := c.refresh(ctx, key); err != nil {
		return c.recover(ctx, err, grand)
	}
	if key != RootID {
		// 父节点自身的 child_count 在祖父列表中
		if err := c.refresh(ctx, grand); err != nil {
			c.report(err)
			return err
		}
	}
	return nil
}

// UpdateDraft 保存编辑中的内容，仅保存在内存中
func (c *Controller) UpdateDraft(id uint, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok && id != RootID && !n.view.Deleted {
		n.draft, n.hasDraft = content, true
	}
}

// CancelEdit 放弃草稿
func (c *Controller) CancelEdit(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		n.draft, n.hasDraft = "", false
	}
}

// RequestEdit 提交编辑，成功后清除草稿并重新加载父列表
func (c *Controller) RequestEdit(ctx context.Context, id uint, content string) error {
	const op = "comment.edit"
	me := c.identity.CurrentUserID()

	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || id == RootID {
		c.mu.Unlock()
		return unknownNode(op, id)
	}
	parent := n.parent
	owner := n.view.OwnerID
	deleted := n.view.Deleted
	if !deleted {
		n.draft, n.hasDraft = content, true
	}
	c.mu.Unlock()

	switch {
	case deleted:
		return c.fail(models.NewError(models.KindValidation, op, "comment has been deleted"))
	case me == uuid.Nil || owner != me:
		return c.fail(models.NewError(models.KindValidation, op, "only the author can edit this comment"))
	case strings.TrimSpace(content) == "":
		return c.fail(models.NewError(models.KindValidation, op, "content must not be empty"))
	}

	if err := c.backend.Edit(ctx, id, me, content); err != nil {
		return c.recover(ctx, err, parent)
	}

	c.mu.Lock()
	if n, ok := c.nodes[id]; ok {
		n.draft, n.hasDraft = "", false
	}
	c.mu.Unlock()

	if err := c.refresh(ctx, parent); err != nil {
		return c.recover(ctx, err, parent)
	}
	return nil
}

// RequestDelete 经确认后删除评论并重新加载父列表
// 已有确认框在等待时返回 ErrGateBusy，请求被丢弃
func (c *Controller) RequestDelete(ctx context.Context, id uint) error {
	const op = "comment.delete"
	me := c.identity.CurrentUserID()

	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || id == RootID {
		c.mu.Unlock()
		return unknownNode(op, id)
	}
	parent := n.parent
	owner := n.view.OwnerID
	deleted := n.view.Deleted
	c.mu.Unlock()

	switch {
	case deleted:
		return c.fail(models.NewError(models.KindValidation, op, "comment has already been deleted"))
	case me == uuid.Nil || owner != me:
		return c.fail(models.NewError(models.KindValidation, op, "only the author can delete this comment"))
	}

	var hard bool
	confirmed, err := c.gate.Guard(ctx, deletePrompt, func(ctx context.Context) error {
		var derr error
		hard, derr = c.backend.Delete(ctx, id)
		return derr
	})
	if errors.Is(err, ErrGateBusy) {
		c.log.Debug("delete dropped, confirmation pending", zap.Uint("id", id))
		return err
	}
	if !confirmed {
		return nil
	}
	if err != nil {
		return c.recover(ctx, err, parent)
	}
	c.log.Debug("comment deleted", zap.Uint("id", id), zap.Bool("hard", hard))

	if err := c.refresh(ctx, parent); err != nil {
		return c.recover(ctx, err, parent)
	}
	return nil
}

// RequestVote 切换投票，无论成功与否都重新读取自己的投票并重新加载父列表
func (c *Controller) RequestVote(ctx context.Context, id uint, value int) error {
	const op = "vote.request"
	me := c.identity.CurrentUserID()

	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok || id == RootID {
		c.mu.Unlock()
		return unknownNode(op, id)
	}
	parent := n.parent
	deleted := n.view.Deleted
	c.seq++
	n.voteStamp = c.seq
	stamp := n.voteStamp
	c.mu.Unlock()

	switch {
	case me == uuid.Nil:
		return c.fail(models.NewError(models.KindValidation, op, "sign in to vote"))
	case deleted:
		return c.fail(models.NewError(models.KindValidation, op, "cannot vote on a deleted comment"))
	}

	_, voteErr := ToggleVote(ctx, c.backend, id, me, value)

	if mine, err := c.backend.GetUserVote(ctx, id, me); err == nil {
		c.mu.Lock()
		// 之后又发起的投票以它自己的读取为准
		if n, ok := c.nodes[id]; ok && n.voteStamp == stamp {
			n.myVote = mine
		}
		c.mu.Unlock()
	} else {
		c.log.Debug("re-reading vote failed", zap.Uint("id", id), zap.Error(err))
	}

	refreshErr := c.refresh(ctx, parent)
	if voteErr != nil {
		c.report(voteErr)
		return voteErr
	}
	if refreshErr != nil {
		return c.recover(ctx, refreshErr, parent)
	}
	return nil
}

// refresh 重新加载节点；若已展开的节点子列表变空，折叠它并重新加载其父列表
// 每个变空的子树只向上传播一层，父列表也变空时才继续
func (c *Controller) refresh(ctx context.Context, key uint) error {
	for {
		parent, emptied, err := c.reload(ctx, key)
		if err != nil || !emptied {
			return err
		}
		key = parent
	}
}

// reload 发起一次带序号的加载，只有最后发起的加载结果会被应用
func (c *Controller) reload(ctx context.Context, key uint) (parent uint, emptied bool, err error) {
	c.mu.Lock()
	n, ok := c.nodes[key]
	if !ok || !n.expanded() {
		c.mu.Unlock()
		return 0, false, nil
	}
	c.seq++
	stamp := c.seq
	n.seq = stamp
	var parentID *uint
	if key != RootID {
		k := key
		parentID = &k
	}
	c.mu.Unlock()

	rows, loadErr := c.loader.Load(ctx, parentID)

	c.mu.Lock()
	n, ok = c.nodes[key]
	if !ok || n.seq != stamp || !n.expanded() {
		c.mu.Unlock()
		c.log.Debug("discarding stale load", zap.Uint("node", key), zap.Uint64("seq", stamp))
		return 0, false, nil
	}
	if loadErr != nil {
		if n.state == ExpandedLoading {
			n.state = Collapsed
		}
		c.mu.Unlock()
		c.presenter.NodeChanged(key)
		return 0, false, loadErr
	}

	added := c.applyChildrenLocked(key, n, rows)
	parent = n.parent
	if key != RootID && len(rows) == 0 {
		c.collapseLocked(n)
		emptied = true
	}
	c.mu.Unlock()

	c.presenter.NodeChanged(key)
	c.lookupVotes(ctx, added)
	return parent, emptied, nil
}

// lookupVotes 为新出现的节点读取当前用户的投票
func (c *Controller) lookupVotes(ctx context.Context, ids []uint) {
	me := c.identity.CurrentUserID()
	if me == uuid.Nil || len(ids) == 0 {
		return
	}

	c.mu.Lock()
	stamps := make(map[uint]uint64, len(ids))
	for _, id := range ids {
		if n, ok := c.nodes[id]; ok && !n.view.Deleted {
			stamps[id] = n.voteStamp
		}
	}
	c.mu.Unlock()

	var (
		g     errgroup.Group
		resMu sync.Mutex
		votes = make(map[uint]int, len(stamps))
	)
	g.SetLimit(voteLookupLimit)
	for id := range stamps {
		g.Go(func() error {
			v, err := c.backend.GetUserVote(ctx, id, me)
			if err != nil {
				c.log.Debug("vote lookup failed", zap.Uint("id", id), zap.Error(err))
				return nil
			}
			resMu.Lock()
			votes[id] = v
			resMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	for id, v := range votes {
		// 期间发生过投票的节点以投票后的读取为准
		if n, ok := c.nodes[id]; ok && n.voteStamp == stamps[id] {
			n.myVote = v
		}
	}
	c.mu.Unlock()
}

// recover 按错误类别处理：NotFound 重新加载父列表且不提示，其余交给 report
func (c *Controller) recover(ctx context.Context, err error, parent uint) error {
	if models.KindOf(err) == models.KindNotFound {
		c.log.Debug("target vanished, reloading parent", zap.Uint("parent", parent), zap.Error(err))
		if rerr := c.refresh(ctx, parent); rerr != nil {
			c.report(rerr)
		}
		return err
	}
	c.report(err)
	return err
}

// report 只有校验错误与传输错误会展示给用户
func (c *Controller) report(err error) {
	switch models.KindOf(err) {
	case models.KindConflict:
		c.log.Warn("unexpected conflict", zap.Error(err))
	case models.KindNotFound:
		c.log.Debug("not found", zap.Error(err))
	case models.KindForbidden:
		c.presenter.ShowError(models.NewError(models.KindValidation, "", "%s", models.Message(err)))
	case models.KindValidation, models.KindTransport:
		c.presenter.ShowError(err)
	default:
		if errors.Is(err, context.Canceled) {
			return
		}
		c.presenter.ShowError(models.WrapError(models.KindTransport, "", err))
	}
}

func (c *Controller) fail(err error) error {
	c.report(err)
	return err
}

func unknownNode(op string, id uint) error {
	return models.NewError(models.KindNotFound, op, "comment %d is not loaded", id)
}
