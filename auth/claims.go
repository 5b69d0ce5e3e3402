package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT 载荷。
//
// 只携带用户标识（sub），角色信息每次请求都从存储重新加载，
// 因此授予或撤销系统审计员后，下一次请求即生效，无需重新签发 Token。
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"uname,omitempty"`
}

// UserID 把 Subject 解析为用户主键
func (c *Claims) UserID() (uint, error) {
	if c == nil || c.Subject == "" {
		return 0, ErrInvalidClaims
	}
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidClaims
	}
	return uint(id), nil
}
