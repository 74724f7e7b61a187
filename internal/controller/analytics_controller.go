package controller

import (
	"strconv"

	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// @Summary 章节进度聚合
// @Description 章节内课时总数、已完成数、完成百分比和累计观看时长
// @Tags 学习分析
// @Produce json
// @Security ApiKeyAuth
// @Param moduleId path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/progress/module/{moduleId} [get]
func (c *AnalyticsController) GetModuleProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	moduleID, err := strconv.Atoi(ctx.Param("moduleId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid module ID")
		return
	}

	summary, err := c.AnalyticsService.GetModuleProgress(user.UserID, uint(moduleID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

// @Summary 课程进度聚合
// @Description 课程内课时总数、已完成数、完成百分比和累计观看时长
// @Tags 学习分析
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/progress/course/{courseId} [get]
func (c *AnalyticsController) GetCourseProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, err := strconv.Atoi(ctx.Param("courseId"))
	if err != nil {
		util.BadRequest(ctx, "Invalid course ID")
		return
	}

	summary, err := c.AnalyticsService.GetCourseProgress(user.UserID, uint(courseID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

// @Summary 学习总览
// @Description 报名/完成课程数、完成课时数、累计观看时长和连续学习天数
// @Tags 学习分析
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/analytics/learning [get]
func (c *AnalyticsController) GetLearningAnalytics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	analytics, err := c.AnalyticsService.GetLearningAnalytics(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, analytics)
}
