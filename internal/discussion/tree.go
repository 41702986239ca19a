package discussion

import (
	"recipethread/internal/models"

	"github.com/google/uuid"
)

// NodeState 节点的展开状态
type NodeState uint8

const (
	Collapsed NodeState = iota
	ExpandedLoading
	Expanded
)

func (s NodeState) String() string {
	switch s {
	case ExpandedLoading:
		return "expanded-loading"
	case Expanded:
		return "expanded"
	}
	return "collapsed"
}

// RootID 顶层列表在 arena 中的键，评论 ID 从 1 开始
const RootID uint = 0

// node arena 中的一项，树结构只通过 parent 与 children 的 ID 表达
type node struct {
	view     models.CommentView
	parent   uint
	state    NodeState
	seq      uint64 // 最近一次发起的加载序号
	children []uint

	myVote    int
	voteStamp uint64

	draft      string
	hasDraft   bool
	replyDraft string
}

func (n *node) expanded() bool {
	return n.state != Collapsed
}

// Row 可见树的一行
type Row struct {
	ID         uint
	ParentID   uint
	Depth      int
	State      NodeState
	View       models.CommentView
	Text       string // 已删除时为占位文字
	ReplyCount int
	CanExpand  bool
	Mine       bool
	MyVote     int
	Draft      string
	HasDraft   bool
}

// replyCount 已展开并加载完的节点以当前子列表为准
func (n *node) replyCount() int {
	if n.state == Expanded {
		return len(n.children)
	}
	return n.view.ChildCount
}

func (c *Controller) rowLocked(id uint, n *node, depth int, me uuid.UUID) Row {
	text := n.view.Content
	if n.view.Deleted {
		text = c.placeholder
	}
	count := n.replyCount()
	return Row{
		ID:         id,
		ParentID:   n.parent,
		Depth:      depth,
		State:      n.state,
		View:       n.view,
		Text:       text,
		ReplyCount: count,
		CanExpand:  count > 0 || n.state != Collapsed,
		Mine:       me != uuid.Nil && n.view.OwnerID == me && !n.view.Deleted,
		MyVote:     n.myVote,
		Draft:      n.draft,
		HasDraft:   n.hasDraft,
	}
}

// Visible 深度优先展开可见的评论
func (c *Controller) Visible() []Row {
	me := c.identity.CurrentUserID()
	c.mu.Lock()
	defer c.mu.Unlock()

	var rows []Row
	var walk func(parent uint, depth int)
	walk = func(parent uint, depth int) {
		for _, id := range c.nodes[parent].children {
			n, ok := c.nodes[id]
			if !ok {
				continue
			}
			rows = append(rows, c.rowLocked(id, n, depth, me))
			if n.expanded() {
				walk(id, depth+1)
			}
		}
	}
	walk(RootID, 0)
	return rows
}

// Node 读取单个节点
func (c *Controller) Node(id uint) (Row, bool) {
	me := c.identity.CurrentUserID()
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[id]
	if !ok || id == RootID {
		return Row{}, false
	}
	depth := 0
	for p := n.parent; p != RootID; p = c.nodes[p].parent {
		depth++
	}
	return c.rowLocked(id, n, depth, me), true
}

// State 节点状态，未知节点视为折叠
func (c *Controller) State(id uint) NodeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.state
	}
	return Collapsed
}

// Draft 编辑草稿
func (c *Controller) Draft(id uint) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.draft, n.hasDraft
	}
	return "", false
}

// ReplyDraft 未提交成功的回复内容，id 为 RootID 时是顶层评论
func (c *Controller) ReplyDraft(id uint) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.replyDraft
	}
	return ""
}

// MyVote 当前用户对该评论的投票
func (c *Controller) MyVote(id uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.myVote
	}
	return 0
}

// dropSubtreeLocked 从 arena 中移除节点及其全部后代
func (c *Controller) dropSubtreeLocked(id uint) {
	n, ok := c.nodes[id]
	if !ok {
		return
	}
	for _, child := range n.children {
		c.dropSubtreeLocked(child)
	}
	delete(c.nodes, id)
}

// collapseLocked 折叠节点，丢弃后代，并使进行中的加载失效
func (c *Controller) collapseLocked(n *node) {
	for _, child := range n.children {
		c.dropSubtreeLocked(child)
	}
	n.children = nil
	n.state = Collapsed
	c.seq++
	n.seq = c.seq
}

// applyChildrenLocked 用新的子列表替换节点的子节点，保留仍存在的子节点状态
// 返回新出现的子节点 ID
func (c *Controller) applyChildrenLocked(key uint, n *node, rows []models.CommentView) []uint {
	keep := make(map[uint]bool, len(rows))
	for _, r := range rows {
		keep[r.ID] = true
	}
	for _, old := range n.children {
		if !keep[old] {
			c.dropSubtreeLocked(old)
		}
	}

	var added []uint
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		child, ok := c.nodes[r.ID]
		if !ok || child.parent != key {
			if ok {
				c.dropSubtreeLocked(r.ID)
			}
			child = &node{parent: key}
			c.nodes[r.ID] = child
			added = append(added, r.ID)
		}
		child.view = r
		if r.Deleted {
			child.draft, child.hasDraft = "", false
		}
		ids = append(ids, r.ID)
	}
	n.children = ids
	if n.state == ExpandedLoading {
		n.state = Expanded
	}
	return added
}
