package handler

import (
	"net/http"

	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
)

type VestingHandler struct {
	vestingLogic *logic.VestingLogic
}

func NewVestingHandler(vestingLogic *logic.VestingLogic) *VestingHandler {
	return &VestingHandler{
		vestingLogic: vestingLogic,
	}
}

// Release 手动触发一轮到期释放
func (h *VestingHandler) Release(c *gin.Context) {
	released, err := h.vestingLogic.ReleaseDue()
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "释放完成", gin.H{"released": released})
}

// Terminate 终止锁仓计划
func (h *VestingHandler) Terminate(c *gin.Context) {
	if err := h.vestingLogic.Terminate(c.Param("id")); err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "锁仓已终止", nil)
}
