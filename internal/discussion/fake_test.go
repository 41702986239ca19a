package discussion

import (
	"context"
	"strings"
	"sync"
	"time"

	"recipethread/internal/models"

	"github.com/google/uuid"
)

type voteKey struct {
	comment uint
	user    uuid.UUID
}

// fakeBackend 内存实现，删除策略与数据库存储一致
type fakeBackend struct {
	mu       sync.Mutex
	nextID   uint
	clock    time.Time
	comments map[uint]*models.Comment
	votes    map[voteKey]int

	listCalls map[uint]int // key 0 为顶层

	// listHook 在取完快照、返回列表前调用，可用于阻塞或注入错误
	listHook  func(ctx context.Context, parent uint) error
	// voteHook 在读到投票值之后、返回之前调用
	voteHook  func(commentID uint, value int)
	editErr   error
	castErr   error
	createErr error
	deletes   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		clock:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		comments:  make(map[uint]*models.Comment),
		votes:     make(map[voteKey]int),
		listCalls: make(map[uint]int),
	}
}

// seed 直接写入一条评论
func (f *fakeBackend) seed(recipeID uint, parentID *uint, owner uuid.UUID, content string) uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(recipeID, parentID, owner, content)
}

func (f *fakeBackend) insertLocked(recipeID uint, parentID *uint, owner uuid.UUID, content string) uint {
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	f.comments[f.nextID] = &models.Comment{
		ID:        f.nextID,
		RecipeID:  recipeID,
		ParentID:  parentID,
		OwnerID:   owner,
		Content:   content,
		CreatedAt: f.clock,
		UpdatedAt: f.clock,
	}
	return f.nextID
}

func (f *fakeBackend) Create(_ context.Context, recipeID uint, parentID *uint, ownerID uuid.UUID, content string) (*models.CommentView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if strings.TrimSpace(content) == "" {
		return nil, models.NewError(models.KindValidation, "create", "content must not be empty")
	}
	if parentID != nil {
		if _, ok := f.comments[*parentID]; !ok {
			return nil, models.NewError(models.KindNotFound, "create", "parent missing")
		}
	}
	id := f.insertLocked(recipeID, parentID, ownerID, strings.TrimSpace(content))
	v := models.NewCommentView(f.comments[id])
	return &v, nil
}

func (f *fakeBackend) Edit(_ context.Context, commentID uint, ownerID uuid.UUID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	c, ok := f.comments[commentID]
	if !ok {
		return models.NewError(models.KindNotFound, "edit", "comment not found")
	}
	if c.OwnerID != ownerID {
		return models.NewError(models.KindForbidden, "edit", "not owner")
	}
	c.Content = strings.ToUpper(strings.TrimSpace(content))
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, commentID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	c, ok := f.comments[commentID]
	if !ok {
		return false, models.NewError(models.KindNotFound, "delete", "comment not found")
	}
	for _, other := range f.comments {
		if other.ParentID != nil && *other.ParentID == commentID {
			c.Deleted = true
			return false, nil
		}
	}
	delete(f.comments, commentID)
	for k := range f.votes {
		if k.comment == commentID {
			delete(f.votes, k)
		}
	}
	return true, nil
}

func (f *fakeBackend) ListChildren(ctx context.Context, recipeID uint, parentID *uint) ([]models.CommentView, error) {
	key := RootID
	if parentID != nil {
		key = *parentID
	}

	f.mu.Lock()
	f.listCalls[key]++
	hook := f.listHook
	var out []models.CommentView
	for _, c := range f.comments {
		if c.RecipeID != recipeID {
			continue
		}
		v := models.NewCommentView(c)
		if !v.SameParent(parentID) {
			continue
		}
		for _, other := range f.comments {
			if other.ParentID != nil && *other.ParentID == c.ID {
				v.ChildCount++
			}
		}
		for k, val := range f.votes {
			if k.comment == c.ID {
				v.ReactionSum += val
			}
		}
		out = append(out, v)
	}
	f.mu.Unlock()

	// 快照已经取好，hook 阻塞时模拟慢响应
	if hook != nil {
		if err := hook(ctx, key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *fakeBackend) GetUserVote(_ context.Context, commentID uint, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	v := f.votes[voteKey{commentID, userID}]
	hook := f.voteHook
	f.mu.Unlock()
	if hook != nil {
		hook(commentID, v)
	}
	return v, nil
}

func (f *fakeBackend) ClearVote(_ context.Context, commentID uint, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.votes, voteKey{commentID, userID})
	return nil
}

func (f *fakeBackend) CastVote(_ context.Context, commentID uint, userID uuid.UUID, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.castErr != nil {
		return f.castErr
	}
	if _, ok := f.votes[voteKey{commentID, userID}]; ok {
		return models.NewError(models.KindConflict, "cast", "already voted")
	}
	f.votes[voteKey{commentID, userID}] = value
	return nil
}

func (f *fakeBackend) rowsFor(commentID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.votes {
		if k.comment == commentID {
			n++
		}
	}
	return n
}

func (f *fakeBackend) setVoteHook(h func(commentID uint, value int)) {
	f.mu.Lock()
	f.voteHook = h
	f.mu.Unlock()
}

func (f *fakeBackend) calls(key uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[key]
}

func (f *fakeBackend) setHook(h func(ctx context.Context, parent uint) error) {
	f.mu.Lock()
	f.listHook = h
	f.mu.Unlock()
}

// fakePresenter 记录回调
type fakePresenter struct {
	mu      sync.Mutex
	errors  []error
	changed map[uint]int
	answer  bool
	prompts int

	// confirmHook 非空时在确认框中阻塞
	confirmHook func()
}

func newFakePresenter(answer bool) *fakePresenter {
	return &fakePresenter{answer: answer, changed: make(map[uint]int)}
}

func (p *fakePresenter) NodeChanged(id uint) {
	p.mu.Lock()
	p.changed[id]++
	p.mu.Unlock()
}

func (p *fakePresenter) ShowError(err error) {
	p.mu.Lock()
	p.errors = append(p.errors, err)
	p.mu.Unlock()
}

func (p *fakePresenter) Confirm(_ context.Context, _ string) bool {
	p.mu.Lock()
	p.prompts++
	hook := p.confirmHook
	answer := p.answer
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return answer
}

func (p *fakePresenter) shown() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errors...)
}

func ptr(id uint) *uint {
	return &id
}
