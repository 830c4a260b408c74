package logic

import (
	"math"

	"github.com/blues/dcs/internal/model"
)

// AllocationMetrics 规则评估输入指标
type AllocationMetrics struct {
	BaseTokenAmount    int64   `json:"base_token_amount"`
	CodeQuality        float64 `json:"code_quality"`        // 0-100
	TestCoverage       float64 `json:"test_coverage"`       // 0-100
	DocumentationScore float64 `json:"documentation_score"` // 0-100
	CompletionTime     float64 `json:"completion_time"`     // 实际耗时（小时）
	EstimatedTime      float64 `json:"estimated_time"`      // 预估耗时（小时）
	Complexity         float64 `json:"complexity"`          // 1-10
}

// RuleEvaluation 规则评估结果
type RuleEvaluation struct {
	FinalAmount  int64    `json:"final_amount"`
	Multiplier   float64  `json:"multiplier"` // 仅乘法类规则因子的乘积
	RulesApplied []string `json:"rules_applied"`
}

// EvaluateRules 按顺序评估规则列表，返回调整后的金额与乘数轨迹
// 纯函数：相同规则列表与指标重复调用结果一致
func EvaluateRules(rules []model.AllocationRule, m AllocationMetrics) RuleEvaluation {
	running := float64(m.BaseTokenAmount)
	multiplier := 1.0
	applied := make([]string, 0, len(rules))

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		value, ok := metricValue(rule.ConditionType, m)
		if !ok {
			continue
		}

		if !conditionMet(value, rule.Operator, rule.ConditionValue) {
			continue
		}

		switch rule.ActionType {
		case model.ActionMultiply:
			running *= rule.ActionValue
			multiplier *= rule.ActionValue
		case model.ActionAdd:
			running += rule.ActionValue
		case model.ActionSubtract:
			running -= rule.ActionValue
			if running < 0 {
				running = 0
			}
		case model.ActionSet:
			running = rule.ActionValue
		default:
			continue
		}

		// 动作级上限在应用后截断当前金额
		if rule.MaxValue > 0 && running > float64(rule.MaxValue) {
			running = float64(rule.MaxValue)
		}

		applied = append(applied, rule.Name)
	}

	if running < 0 {
		running = 0
	}

	return RuleEvaluation{
		FinalAmount:  int64(math.Floor(running)),
		Multiplier:   multiplier,
		RulesApplied: applied,
	}
}

// metricValue 根据条件类型取出指标值
// 完成耗时条件使用 实际/预估 比值，其余条件使用原始指标
func metricValue(t model.RuleConditionType, m AllocationMetrics) (float64, bool) {
	switch t {
	case model.ConditionCodeQuality:
		return m.CodeQuality, true
	case model.ConditionContribution:
		return float64(m.BaseTokenAmount), true
	case model.ConditionTimeToComplete:
		if m.EstimatedTime <= 0 {
			return 0, false
		}
		return m.CompletionTime / m.EstimatedTime, true
	case model.ConditionTestingCoverage:
		return m.TestCoverage, true
	case model.ConditionDocumentation:
		return m.DocumentationScore, true
	default:
		return 0, false
	}
}

// conditionMet 判断比较条件是否成立
func conditionMet(value float64, op model.RuleOperator, threshold float64) bool {
	switch op {
	case model.OperatorGT:
		return value > threshold
	case model.OperatorLT:
		return value < threshold
	case model.OperatorEQ:
		return value == threshold
	case model.OperatorGE:
		return value >= threshold
	case model.OperatorLE:
		return value <= threshold
	default:
		return false
	}
}
