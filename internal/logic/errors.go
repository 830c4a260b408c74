package logic

import "errors"

// 业务错误定义
// 上限截断（CapApplied）不属于错误，通过 AllocationResult 返回部分成功信号
var (
	ErrContractNotFound   = errors.New("合约不存在")
	ErrMilestoneNotFound  = errors.New("里程碑不存在")
	ErrPoolNotFound       = errors.New("代币池不存在")
	ErrRepositoryNotFound = errors.New("仓库不存在")
	ErrCommitNotFound     = errors.New("提交记录不存在")
	ErrCommitExists       = errors.New("提交已登记")
	ErrVestingNotFound    = errors.New("锁仓计划不存在")

	ErrInsufficientPoolFunds = errors.New("代币池余额不足")
	ErrPoolNotActive         = errors.New("代币池不可分配")

	ErrContractAlreadySigned     = errors.New("合约已签署")
	ErrMilestoneAlreadyCompleted = errors.New("里程碑已完成")
	ErrInvalidStatusTransition   = errors.New("非法的状态迁移")
)
