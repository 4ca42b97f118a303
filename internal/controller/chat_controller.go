package controller

import (
	"time"

	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ChatController 课程聊天的 HTTP 与 WebSocket 入口
type ChatController struct {
	ChatService *service.ChatService
	Authorizer  *service.ChatAuthorizer
	Hub         *service.ChatHub
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ReceiverID uint   `json:"receiverId" binding:"required" example:"2"`
	Message    string `json:"message" binding:"required" example:"老师好"`
}

func NewChatController(chatService *service.ChatService, authorizer *service.ChatAuthorizer, hub *service.ChatHub) *ChatController {
	return &ChatController{
		ChatService: chatService,
		Authorizer:  authorizer,
		Hub:         hub,
	}
}

// HandleWS godoc
// @Summary WebSocket 连接
// @Description 建立 WebSocket 连接，通过 JoinCourseRoom / SendMessage 帧加入课程聊天室
// @Tags 课程聊天
// @Param   token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Router /api/chat/ws [get]
func (ctrl *ChatController) HandleWS(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	service.ServeWs(ctrl.Hub, c.Writer, c.Request, user)
}

// VerifyAccess godoc
// @Summary 校验聊天权限
// @Description 无权限时 hasAccess 为 false
// @Tags 课程聊天
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ChatAccess}
// @Failure 404 {object} util.Response
// @Router /api/chat/verify/{courseId} [get]
func (ctrl *ChatController) VerifyAccess(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	access, err := ctrl.Authorizer.Access(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	for i := range access.EnrolledStudents {
		access.EnrolledStudents[i].Online = ctrl.Hub.IsUserOnline(c.Request.Context(), access.EnrolledStudents[i].UserID)
	}
	util.Success(c, access)
}

// GetMessages godoc
// @Summary 聊天记录
// @Description 学生只能看到与讲师的会话，讲师可按 studentId 筛选
// @Tags 课程聊天
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Param limit query int false "数量" default(50)
// @Param before query string false "RFC3339 时间，返回该时间之前的消息"
// @Param studentId query int false "学生ID（仅讲师）"
// @Success 200 {object} util.Response{data=[]service.MessageView}
// @Failure 403 {object} util.Response
// @Router /api/chat/messages/{courseId} [get]
func (ctrl *ChatController) GetMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}

	q := service.HistoryQuery{
		Limit:     util.QueryInt(c, "limit", util.DefaultHistoryLimit),
		StudentID: util.MustParseUint(c.Query("studentId")),
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.BadRequest(c, "before must be an RFC3339 timestamp")
			return
		}
		q.Before = &before
	}

	messages, err := ctrl.ChatService.History(c.Request.Context(), user, courseID, q)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, messages)
}

// SendMessage godoc
// @Summary 发送消息
// @Description 落库后推送给聊天室在线成员
// @Tags 课程聊天
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Param request body SendMessageRequest true "消息"
// @Success 201 {object} util.Response{data=service.MessageView}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/chat/messages/{courseId} [post]
func (ctrl *ChatController) SendMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	view, err := ctrl.ChatService.Send(c.Request.Context(), user, courseID, req.ReceiverID, req.Message)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	ctrl.Hub.BroadcastMessage(c.Request.Context(), view)
	util.Created(c, view)
}
