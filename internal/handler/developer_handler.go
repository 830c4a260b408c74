package handler

import (
	"net/http"

	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
)

type DeveloperHandler struct {
	perfLogic     *logic.PerformanceLogic
	contractLogic *logic.ContractLogic
	vestingLogic  *logic.VestingLogic
}

func NewDeveloperHandler(perfLogic *logic.PerformanceLogic, contractLogic *logic.ContractLogic, vestingLogic *logic.VestingLogic) *DeveloperHandler {
	return &DeveloperHandler{
		perfLogic:     perfLogic,
		contractLogic: contractLogic,
		vestingLogic:  vestingLogic,
	}
}

// GetPerformance 获取开发者绩效记录
func (h *DeveloperHandler) GetPerformance(c *gin.Context) {
	perf, err := h.perfLogic.GetOrCreate(c.Param("developerId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", perf)
}

// GetPerformanceSummary 获取开发者绩效概览
func (h *DeveloperHandler) GetPerformanceSummary(c *gin.Context) {
	summary, err := h.contractLogic.GetDeveloperPerformanceSummary(c.Param("developerId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", summary)
}

type flagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// FlagSuspicious 标记可疑行为
func (h *DeveloperHandler) FlagSuspicious(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.perfLogic.FlagSuspicious(c.Param("developerId"), req.Flag); err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "标记成功", nil)
}

// GetVestingSchedules 获取开发者的锁仓计划
func (h *DeveloperHandler) GetVestingSchedules(c *gin.Context) {
	schedules, err := h.vestingLogic.ListByDeveloper(c.Param("developerId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", schedules)
}
