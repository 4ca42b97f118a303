package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// SubmitAttemptRequest 提交测验请求
type SubmitAttemptRequest struct {
	Answers []service.SubmittedAnswer `json:"answers" binding:"dive"`
}

// GetQuiz godoc
// @Summary 获取测验题目
// @Description 正确答案不会返回
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/student/quizzes/{quizId} [get]
func (ctrl *QuizController) GetQuiz(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	quizID, ok := paramID(c, "quizId")
	if !ok {
		return
	}
	quiz, err := ctrl.QuizService.GetQuizForStudent(c.Request.Context(), user, quizID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, quiz)
}

// SubmitAttempt godoc
// @Summary 提交测验
// @Description 按题目精确匹配评分，每次提交记录一次作答
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Param request body SubmitAttemptRequest true "作答"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/student/quizzes/{quizId}/attempt [post]
func (ctrl *QuizController) SubmitAttempt(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	quizID, ok := paramID(c, "quizId")
	if !ok {
		return
	}
	var req SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	result, err := ctrl.QuizService.SubmitAttempt(c.Request.Context(), user, quizID, req.Answers)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// ListAttempts godoc
// @Summary 作答记录
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/student/quizzes/{quizId}/attempts [get]
func (ctrl *QuizController) ListAttempts(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	quizID, ok := paramID(c, "quizId")
	if !ok {
		return
	}
	attempts, err := ctrl.QuizService.ListAttempts(c.Request.Context(), user, quizID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, attempts)
}
