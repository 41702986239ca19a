package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipethread/internal/config"
	"recipethread/internal/models"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// Client 通过 HTTP 接口访问评论服务，实现 discussion.Backend
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	attempts uint
	delay    time.Duration
	log      *zap.Logger
}

// New 创建客户端，token 为外部认证服务签发的访问令牌
func New(cfg config.ClientConfig, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	attempts := cfg.RetryCount
	if attempts == 0 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		token:    token,
		attempts: attempts,
		delay:    cfg.RetryDelay,
		log:      log,
	}
}

// statusError 服务端返回的非 2xx 响应
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.msg)
}

type errorBody struct {
	Error string `json:"error"`
}

// kindOfStatus HTTP 状态码到错误类别
func kindOfStatus(code int) models.Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return models.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.KindForbidden
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusConflict:
		return models.KindConflict
	}
	return models.KindTransport
}

// request 描述一次调用
type request struct {
	op      string
	method  string
	path    string
	body    any
	out     any
	headers map[string]string
	retry   bool // 只有幂等请求才重试
}

func (c *Client) call(ctx context.Context, r request) error {
	var err error
	if r.retry {
		err = retry.Do(
			func() error { return c.once(ctx, r) },
			retry.Attempts(c.attempts),
			retry.Delay(c.delay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.RetryIf(retryable),
			retry.OnRetry(func(n uint, err error) {
				c.log.Warn("重试请求",
					zap.String("op", r.op),
					zap.Uint("attempt", n+1),
					zap.Error(err),
				)
			}),
		)
	} else {
		err = c.once(ctx, r)
	}
	if err != nil && models.KindOf(err) == models.KindUnknown {
		return models.WrapError(models.KindTransport, r.op, err)
	}
	return err
}

// retryable 网络错误与 5xx 可重试，429 与 4xx 不重试
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return models.KindOf(err) == models.KindTransport
}

func (c *Client) once(ctx context.Context, r request) error {
	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.WrapError(models.KindTransport, r.op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &models.Error{
			Kind: kindOfStatus(resp.StatusCode),
			Op:   r.op,
			Msg:  eb.Error,
			Err:  &statusError{code: resp.StatusCode, msg: eb.Error},
		}
	}
	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return models.WrapError(models.KindTransport, r.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

type listResponse struct {
	Comments []models.CommentView `json:"comments"`
}

type voteBody struct {
	Value int `json:"value"`
}

// Create 每次调用生成新的幂等键，重试时复用同一个键
func (c *Client) Create(ctx context.Context, recipeID uint, parentID *uint, _ uuid.UUID, content string) (*models.CommentView, error) {
	var view models.CommentView
	err := c.call(ctx, request{
		op:      "comment.create",
		method:  http.MethodPost,
		path:    fmt.Sprintf("/api/recipes/%d/comments", recipeID),
		body:    map[string]any{"content": content, "parent_id": parentID},
		out:     &view,
		headers: map[string]string{idempotencyHeader: uuid.NewString()},
		retry:   true,
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Edit ownerID 由令牌决定
func (c *Client) Edit(ctx context.Context, commentID uint, _ uuid.UUID, content string) error {
	return c.call(ctx, request{
		op:     "comment.edit",
		method: http.MethodPatch,
		path:   fmt.Sprintf("/api/comments/%d", commentID),
		body:   map[string]string{"content": content},
		retry:  true,
	})
}

func (c *Client) Delete(ctx context.Context, commentID uint) (bool, error) {
	var out struct {
		HardDeleted bool `json:"hard_deleted"`
	}
	err := c.call(ctx, request{
		op:     "comment.delete",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/comments/%d", commentID),
		out:    &out,
	})
	return out.HardDeleted, err
}

func (c *Client) ListChildren(ctx context.Context, recipeID uint, parentID *uint) ([]models.CommentView, error) {
	path := fmt.Sprintf("/api/recipes/%d/comments", recipeID)
	if parentID != nil {
		path = fmt.Sprintf("/api/recipes/%d/comments/%d/replies", recipeID, *parentID)
	}
	var out listResponse
	err := c.call(ctx, request{
		op:     "comment.list",
		method: http.MethodGet,
		path:   path,
		out:    &out,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	return out.Comments, nil
}

func (c *Client) GetUserVote(ctx context.Context, commentID uint, _ uuid.UUID) (int, error) {
	var out voteBody
	err := c.call(ctx, request{
		op:     "vote.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/comments/%d/vote", commentID),
		out:    &out,
		retry:  true,
	})
	return out.Value, err
}

func (c *Client) ClearVote(ctx context.Context, commentID uint, _ uuid.UUID) error {
	return c.call(ctx, request{
		op:     "vote.clear",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/comments/%d/vote", commentID),
		retry:  true,
	})
}

// CastVote 不重试，重放会得到 409
func (c *Client) CastVote(ctx context.Context, commentID uint, _ uuid.UUID, value int) error {
	return c.call(ctx, request{
		op:     "vote.cast",
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/comments/%d/vote", commentID),
		body:   voteBody{Value: value},
	})
}
