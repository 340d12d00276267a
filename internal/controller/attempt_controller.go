package controller

import (
	"edulearn_backend/internal/service"
	"edulearn_backend/internal/session"
	"edulearn_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

// @Summary 开始（或恢复）一次测验尝试
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 201 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	resp, err := c.Service.StartAttempt(user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, resp)
}

// @Summary 增量更新一题作答
// @Description 仅传入的字段被更新，未传字段保持不变
// @Tags 尝试模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param questionId path string true "题目ID"
// @Param body body session.AnswerPatch true "作答增量"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers/{questionId} [patch]
func (c *AttemptController) UpsertAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var patch session.AnswerPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, err := c.Service.UpsertAnswer(user.UserID, ctx.Param("id"), ctx.Param("questionId"), patch)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 立即保存当前作答
// @Description 保存失败不阻断作答，仅返回 saved=false
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/save [post]
func (c *AttemptController) SaveNow(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	saved, err := c.Service.SaveNow(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if saved {
		util.Success(ctx, gin.H{"saved": true})
		return
	}
	util.Success(ctx, gin.H{"saved": false, "warning": "save failed, answers retained and will be retried"})
}

// @Summary 标记题目待复查
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param questionId path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/flag/{questionId} [post]
func (c *AttemptController) FlagQuestion(ctx *gin.Context) {
	c.setFlag(ctx, true)
}

// @Summary 取消标记题目
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param questionId path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/flag/{questionId} [delete]
func (c *AttemptController) UnflagQuestion(ctx *gin.Context) {
	c.setFlag(ctx, false)
}

func (c *AttemptController) setFlag(ctx *gin.Context, flagged bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.FlagQuestion(user.UserID, ctx.Param("id"), ctx.Param("questionId"), flagged); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"flagged": flagged})
}

// @Summary 上传文件作答
// @Tags 尝试模块
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param questionId path string true "题目ID"
// @Param file formData file true "作答文件"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/files/{questionId} [post]
func (c *AttemptController) UploadAnswerFile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	state, err := c.Service.AttachAnswerFile(ctx.Request.Context(), user.UserID,
		ctx.Param("id"), ctx.Param("questionId"),
		fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 获取会话状态（剩余时间、作答进度）
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/state [get]
func (c *AttemptController) GetState(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	state, err := c.Service.GetState(user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 提交测验尝试
// @Description 幂等：重复提交返回首次结果；与定时自动提交竞态时只发生一次转换
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	outcome, err := c.Service.Submit(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, outcome)
}

// @Summary 查看一次尝试的结果
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.GetResult(user.UserID, user.Role, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 按评分策略合成的最终成绩
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/grade [get]
func (c *AttemptController) GetQuizGrade(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	grade, err := c.Service.GetQuizGrade(user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, grade)
}

// @Summary 我在某测验下的全部尝试
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts/mine [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.ListAttempts(user.UserID, ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": attempts, "total": len(attempts)})
}

// @Summary 测验下全部尝试（教师端）
// @Tags 尝试模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts [get]
func (c *AttemptController) ListQuizAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	attempts, total, err := c.Service.ListQuizAttempts(ctx.Param("id"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": attempts, "total": total})
}
