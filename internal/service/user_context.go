package service

import (
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
)

// UserContext 调用方身份，由边界层从已验证的令牌构造后显式传入
type UserContext struct {
	UserID uint
	Role   model.UserRole
}

func UserContextFromClaims(claims *util.Claims) UserContext {
	return UserContext{UserID: claims.UserID, Role: claims.Role}
}
