package util

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"learnhub_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenIssuer = "learnhub"
	// 容忍认证服务与本服务之间的时钟偏差
	tokenLeeway = 30 * time.Second
)

var errTokenClaims = errors.New("token claims missing user")

// Claims 由外部认证服务签发，UserID 与 Role 决定访问范围
type Claims struct {
	UserID uint           `json:"user_id"`
	Role   model.UserRole `json:"role"`
	Email  string         `json:"email"`
	jwt.RegisteredClaims
}

// GenerateJWT 签发由外部认证服务负责，这里仅供工具与测试使用
func GenerateJWT(user *model.User, secret string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT 只接受 HS256，且必须带过期时间与用户ID
func ParseJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return nil, errTokenClaims
	}
	return claims, nil
}

func GetUserFromContext(c *gin.Context) *Claims {
	claims, _ := c.Get("user")
	user, _ := claims.(*Claims)
	return user
}
