package controller

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/service"
	"edulearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary 创建测验
// @Tags 测验模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizReq true "测验定义"
// @Success 201 {object} util.Response
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.CreateQuiz(user.UserID, req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, quiz)
}

// @Summary 获取测验详情
// @Description 教师返回含答案的完整定义；学生只看到已发布测验且不含正确答案
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param attemptId query string false "按该次尝试确定题目乱序（学生）"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if user.Role == model.Teacher || user.Role == model.Admin {
		quiz, err := c.Service.GetQuizForTeacher(ctx.Param("id"))
		if err != nil {
			respondError(ctx, err)
			return
		}
		util.Success(ctx, quiz)
		return
	}

	view, err := c.Service.GetQuizForStudent(ctx.Request.Context(), ctx.Param("id"), ctx.Query("attemptId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 更新测验
// @Tags 测验模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body service.QuizReq true "测验定义"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.UpdateQuiz(ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 删除测验
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	if err := c.Service.DeleteQuiz(ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type publishReq struct {
	IsPublished bool `json:"isPublished"`
}

// @Summary 发布/下线测验
// @Tags 测验模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body publishReq true "发布状态"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/publish [post]
func (c *QuizController) SetPublished(ctx *gin.Context) {
	var req publishReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SetPublished(ctx.Param("id"), req.IsPublished); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"isPublished": req.IsPublished})
}

// @Summary 课程下的测验列表
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param courseId query string true "课程ID"
// @Param publishedOnly query bool false "仅已发布"
// @Success 200 {object} util.Response
// @Router /api/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	courseID := ctx.Query("courseId")
	if courseID == "" {
		util.BadRequest(ctx, "courseId is required")
		return
	}

	user := util.GetUserFromContext(ctx)
	publishedOnly := ctx.DefaultQuery("publishedOnly", "false") == "true"
	// 学生只能看到已发布的测验
	if user != nil && user.Role == model.Student {
		publishedOnly = true
	}

	quizzes, err := c.Service.ListByCourse(courseID, publishedOnly)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": quizzes, "total": len(quizzes)})
}
