package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/gin-gonic/gin"
)

type RepositoryHandler struct {
	commitLogic *logic.CommitLogic
}

func NewRepositoryHandler(commitLogic *logic.CommitLogic) *RepositoryHandler {
	return &RepositoryHandler{
		commitLogic: commitLogic,
	}
}

// RegisterRepository 登记仓库
func (h *RepositoryHandler) RegisterRepository(c *gin.Context) {
	var repo model.GitRepository
	if err := c.ShouldBindJSON(&repo); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.commitLogic.RegisterRepository(&repo)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "仓库登记成功", created)
}

// GetRepository 获取仓库详情
func (h *RepositoryHandler) GetRepository(c *gin.Context) {
	repo, err := h.commitLogic.GetRepository(c.Param("id"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", repo)
}

// RecordCommit 登记提交并触发质量计酬
func (h *RepositoryHandler) RecordCommit(c *gin.Context) {
	var input logic.CommitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	input.RepositoryID = c.Param("id")

	commit, allocation, err := h.commitLogic.RecordCommit(c.Request.Context(), input)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "提交登记成功", gin.H{
		"commit":     commit,
		"allocation": allocation,
	})
}

// ListCommits 获取仓库的提交列表
func (h *RepositoryHandler) ListCommits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	commits, err := h.commitLogic.ListCommits(c.Param("id"), limit)
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", commits)
}

// GetCommit 获取提交详情
func (h *RepositoryHandler) GetCommit(c *gin.Context) {
	commit, err := h.commitLogic.GetCommit(c.Param("commitId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", commit)
}

// VerifyCommit 校验提交完整性
func (h *RepositoryHandler) VerifyCommit(c *gin.Context) {
	valid, err := h.commitLogic.VerifyCommit(c.Request.Context(), c.Param("commitId"))
	if err != nil {
		FailWith(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "校验完成", gin.H{"valid": valid})
}
