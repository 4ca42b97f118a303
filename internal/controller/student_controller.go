package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StudentController struct {
	StudentService  *service.StudentService
	ProgressService *service.ProgressService
	VideoService    *service.VideoProgressService
}

func NewStudentController(studentService *service.StudentService, progressService *service.ProgressService, videoService *service.VideoProgressService) *StudentController {
	return &StudentController{
		StudentService:  studentService,
		ProgressService: progressService,
		VideoService:    videoService,
	}
}

// GetDashboard godoc
// @Summary 学习看板
// @Description 返回所有已选课程的进度与汇总
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.Dashboard}
// @Router /api/student/dashboard [get]
func (ctrl *StudentController) GetDashboard(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	dashboard, err := ctrl.StudentService.Dashboard(c.Request.Context(), user)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, dashboard)
}

// Enroll godoc
// @Summary 选课
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "重复选课"
// @Router /api/student/courses/{courseId}/enroll [post]
func (ctrl *StudentController) Enroll(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	enrollment, err := ctrl.StudentService.Enroll(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, enrollment)
}

// StartCourse godoc
// @Summary 开始学习课程
// @Description 将选课状态从未开始切换为进行中，重复调用无副作用
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Router /api/student/courses/{courseId}/start [post]
func (ctrl *StudentController) StartCourse(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	enrollment, err := ctrl.StudentService.StartCourse(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, enrollment)
}

// ContinueCourse godoc
// @Summary 继续学习
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ContinueResult}
// @Router /api/student/courses/{courseId}/continue [get]
func (ctrl *StudentController) ContinueCourse(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	result, err := ctrl.StudentService.Continue(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// GetProgress godoc
// @Summary 课程进度
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressSnapshot}
// @Failure 404 {object} util.Response
// @Router /api/student/courses/{courseId}/progress [get]
func (ctrl *StudentController) GetProgress(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	courseID, ok := paramID(c, "courseId")
	if !ok {
		return
	}
	snap, err := ctrl.ProgressService.Snapshot(c.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, snap)
}

// CompleteLesson godoc
// @Summary 完成课时
// @Tags 学生
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonCompletionResult}
// @Router /api/student/lessons/{lessonId}/complete [post]
func (ctrl *StudentController) CompleteLesson(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}
	result, err := ctrl.StudentService.CompleteLesson(c.Request.Context(), user, lessonID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// RecordVideoProgress godoc
// @Summary 上报视频观看进度
// @Description 观看达到 90% 自动完成课时
// @Tags 学生
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Param request body service.VideoProgressInput true "观看进度"
// @Success 200 {object} util.Response{data=model.LessonVideoProgress}
// @Router /api/student/lessons/{lessonId}/video-progress [put]
func (ctrl *StudentController) RecordVideoProgress(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}
	var req service.VideoProgressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	progress, err := ctrl.VideoService.Record(c.Request.Context(), user, lessonID, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, progress)
}
