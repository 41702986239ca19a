package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"recipethread/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CheckUserKey 上下文中当前用户 ID 的键
const CheckUserKey = "user"

var errInvalidSubject = errors.New("token subject is not a user id")

// Authenticator 校验外部认证服务签发的 HS256 令牌，sub 为用户 UUID
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}
}

// Parse 校验令牌并返回用户 ID
func (a *Authenticator) Parse(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errInvalidSubject
	}
	return id, nil
}

// Issue 签发令牌，供命令行工具与测试使用
func (a *Authenticator) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// LoadUser 解析 Authorization 头，令牌有效时把用户 ID 放入上下文
func (a *Authenticator) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if ok && token != "" {
			if id, err := a.Parse(token); err == nil {
				c.Set(CheckUserKey, id)
			} else {
				c.Set(authErrorKey, err.Error())
			}
		}
		c.Next()
	}
}

const authErrorKey = "auth_error"

// AuthRequired 没有有效令牌时返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			msg := "authentication required"
			if reason := c.GetString(authErrorKey); reason != "" {
				msg = "invalid token: " + reason
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "kind": "unauthorized"})
			return
		}
		c.Next()
	}
}

// CurrentUser 取出当前用户 ID
func CurrentUser(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
