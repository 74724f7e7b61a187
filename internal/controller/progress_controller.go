package controller

import (
	"strconv"

	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ProgressController 进度同步的HTTP入口。
// 身份由JWT中间件解析，所有服务调用都显式传入 userID。
type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// BatchUpdateRequest 批量上报请求体
type BatchUpdateRequest struct {
	Updates []service.ProgressSample `json:"updates" binding:"required"`
}

// MarkCompleteRequest 手动完成请求体
type MarkCompleteRequest struct {
	LessonID uint `json:"lessonId" binding:"required"`
	CourseID uint `json:"courseId"`
	ModuleID uint `json:"moduleId"`
}

// ResetProgressRequest 重置进度请求体
type ResetProgressRequest struct {
	LessonID uint `json:"lessonId" binding:"required"`
}

// @Summary 上报播放进度
// @Description 以绝对量上报一条播放进度样本，服务端按合并策略落库
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sample body service.ProgressSample true "进度样本"
// @Success 200 {object} util.Response
// @Router /api/progress [post]
func (c *ProgressController) UpdateProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var sample service.ProgressSample
	if err := ctx.ShouldBindJSON(&sample); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	recordID, err := c.ProgressService.UpdateProgress(user.UserID, sample)
	if err != nil {
		if err == util.ErrInvalidPercentage || err == util.ErrNegativeDuration {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"recordId": recordID})
}

// @Summary 批量上报播放进度
// @Description 一次最多50条样本；同一课时按时间戳去重，单条失败不影响其余条目
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param updates body BatchUpdateRequest true "进度样本列表"
// @Success 200 {object} util.Response
// @Router /api/progress/batch [post]
func (c *ProgressController) UpdateProgressBatch(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req BatchUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.UpdateProgressBatch(user.UserID, req.Updates)
	if err != nil {
		if err == util.ErrBatchTooLarge || err == util.ErrEmptyBatch {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 增量上报播放进度
// @Description 上报观看秒数的增量而非绝对量，适合高频低带宽调用方
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sample body service.CompressedSample true "增量样本"
// @Success 200 {object} util.Response
// @Router /api/progress/compressed [post]
func (c *ProgressController) UpdateProgressCompressed(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CompressedSample
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	recordID, err := c.ProgressService.UpdateProgressCompressed(user.UserID, req)
	if err != nil {
		if err == util.ErrInvalidPercentage || err == util.ErrNegativeDuration {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"recordId": recordID})
}

// @Summary 手动标记课时完成
// @Description 立即把课时标记为完成，没有记录时创建一条完成记录
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body MarkCompleteRequest true "课时标识"
// @Success 200 {object} util.Response
// @Router /api/progress/complete [post]
func (c *ProgressController) MarkComplete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req MarkCompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	recordID, err := c.ProgressService.MarkComplete(user.UserID, req.LessonID, req.CourseID, req.ModuleID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"recordId": recordID})
}

// @Summary 重置课时进度
// @Description 清零进度计数但保留记录行；没有记录时返回空结果
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ResetProgressRequest true "课时标识"
// @Success 200 {object} util.Response
// @Router /api/progress/reset [post]
func (c *ProgressController) ResetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ResetProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	recordID, err := c.ProgressService.ResetProgress(user.UserID, req.LessonID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if recordID == 0 {
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, gin.H{"recordId": recordID})
}

// @Summary 查询课时进度
// @Description 返回当前用户在指定课时上的进度记录，不存在时返回空数据
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/progress/{lessonId} [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID, err := strconv.Atoi(ctx.Param("lessonId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid lesson ID")
		return
	}

	record, err := c.ProgressService.GetProgress(user.UserID, uint(lessonID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if record == nil {
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, record)
}
