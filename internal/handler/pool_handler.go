package handler

import (
	"net/http"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/gin-gonic/gin"
)

type PoolHandler struct {
	poolLogic  *logic.PoolLogic
	allocLogic *logic.AllocationLogic
	token      config.TokenConfig
}

func NewPoolHandler(poolLogic *logic.PoolLogic, allocLogic *logic.AllocationLogic, token config.TokenConfig) *PoolHandler {
	return &PoolHandler{
		poolLogic:  poolLogic,
		allocLogic: allocLogic,
		token:      token,
	}
}

// CreatePool 创建代币池
func (h *PoolHandler) CreatePool(c *gin.Context) {
	var pool model.TokenPool
	if err := c.ShouldBindJSON(&pool); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.poolLogic.CreatePool(&pool); err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "代币池创建成功", pool)
}

// GetPool 获取代币池详情（含分配规则）
func (h *PoolHandler) GetPool(c *gin.Context) {
	pool, err := h.poolLogic.GetPool(c.Param("id"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", pool)
}

// GetSummary 获取全部代币池的分配汇总
func (h *PoolHandler) GetSummary(c *gin.Context) {
	summary, err := h.poolLogic.GetPoolSummary(h.token.TotalSupply)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", summary)
}

// Allocate 手动发起一次代币分配（绩效奖励、质量奖励等）
func (h *PoolHandler) Allocate(c *gin.Context) {
	var req logic.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeveloperID == "" {
		ErrorResponse(c, http.StatusBadRequest, "developer_id 不能为空")
		return
	}
	if req.EventType == "" {
		req.EventType = model.AllocationEventPerformanceBonus
	}

	result, err := h.allocLogic.Allocate(c.Request.Context(), req)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "分配成功", result)
}

// GetDeveloperAllocations 获取开发者的分配事件历史
func (h *PoolHandler) GetDeveloperAllocations(c *gin.Context) {
	events, err := h.allocLogic.GetDeveloperAllocations(c.Param("developerId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", events)
}
