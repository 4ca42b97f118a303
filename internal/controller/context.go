package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// requireUser 未登录时直接写入 401
func requireUser(c *gin.Context) (service.UserContext, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return service.UserContext{}, false
	}
	return service.UserContextFromClaims(claims), true
}

// paramID 解析失败时写入 400
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := util.ParamID(c, name)
	if err != nil {
		util.HandleError(c, err)
		return 0, false
	}
	return id, true
}
