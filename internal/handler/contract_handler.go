package handler

import (
	"net/http"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	contractLogic *logic.ContractLogic
}

func NewContractHandler(contractLogic *logic.ContractLogic) *ContractHandler {
	return &ContractHandler{
		contractLogic: contractLogic,
	}
}

// CreateContract 创建合约
func (h *ContractHandler) CreateContract(c *gin.Context) {
	var contract model.DeveloperContract
	if err := c.ShouldBindJSON(&contract); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.contractLogic.CreateContract(&contract)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "合约创建成功", created)
}

// GetContract 获取合约详情
func (h *ContractHandler) GetContract(c *gin.Context) {
	contract, err := h.contractLogic.GetContract(c.Param("id"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", contract)
}

type signRequest struct {
	DeveloperSignature string `json:"developer_signature" binding:"required"`
	ProjectSignature   string `json:"project_signature" binding:"required"`
}

// SignContract 双方签署合约并发放签约代币
func (h *ContractHandler) SignContract(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	contract, allocation, err := h.contractLogic.SignContract(c.Request.Context(), c.Param("id"),
		req.DeveloperSignature, req.ProjectSignature)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "合约签署成功", gin.H{
		"contract":   contract,
		"allocation": allocation,
	})
}

// CompleteMilestone 完成里程碑
func (h *ContractHandler) CompleteMilestone(c *gin.Context) {
	var sub logic.MilestoneSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	milestone, allocation, err := h.contractLogic.CompleteMilestone(c.Request.Context(), c.Param("milestoneId"), sub)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "里程碑完成", gin.H{
		"milestone":  milestone,
		"allocation": allocation,
	})
}

// VerifyContract 校验合约完整性
func (h *ContractHandler) VerifyContract(c *gin.Context) {
	valid, err := h.contractLogic.VerifyContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "校验完成", gin.H{"valid": valid})
}

type statusRequest struct {
	Status model.ContractStatus `json:"status" binding:"required"`
}

// UpdateStatus 更新合约状态
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.contractLogic.UpdateStatus(c.Param("id"), req.Status); err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "状态更新成功", nil)
}

// TerminateContract 终止合约
func (h *ContractHandler) TerminateContract(c *gin.Context) {
	if err := h.contractLogic.TerminateContract(c.Param("id")); err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "合约已终止", nil)
}

// GetDeveloperContracts 获取开发者的合约列表
func (h *ContractHandler) GetDeveloperContracts(c *gin.Context) {
	contracts, err := h.contractLogic.GetDeveloperContracts(c.Param("developerId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", contracts)
}
