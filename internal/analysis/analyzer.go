package analysis

import (
	"path/filepath"
	"strings"
)

// FileQuality 单文件静态分析结果
type FileQuality struct {
	Quality         float64 `json:"quality"`         // 0-100
	Complexity      float64 `json:"complexity"`      // 1-10
	Maintainability float64 `json:"maintainability"` // 0-100
}

// Analyzer 静态分析适配器
// 真实部署中由外部分析服务实现（sonar、lint 聚合等）
type Analyzer interface {
	AnalyzeFile(path string) (FileQuality, error)
}

// HeuristicAnalyzer 基于文件特征的启发式分析器
// 在外部分析服务不可用时提供确定性的保守估计
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer 创建启发式分析器
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// AnalyzeFile 按文件类型给出确定性评分
func (a *HeuristicAnalyzer) AnalyzeFile(path string) (FileQuality, error) {
	quality := FileQuality{
		Quality:         75,
		Complexity:      5,
		Maintainability: 75,
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".txt", ".rst":
		// 文档类文件复杂度低
		quality.Quality = 85
		quality.Complexity = 1
		quality.Maintainability = 90
	case ".json", ".yaml", ".yml", ".toml":
		quality.Quality = 80
		quality.Complexity = 1
		quality.Maintainability = 85
	}

	if IsTestFile(path) {
		quality.Quality += 5
		if quality.Quality > 100 {
			quality.Quality = 100
		}
	}

	return quality, nil
}

// IsTestFile 判断是否为测试文件
func IsTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "test") || strings.Contains(lower, "spec")
}

// IsDocumentationFile 判断是否为文档文件
func IsDocumentationFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "readme") ||
		strings.HasSuffix(lower, ".md") ||
		strings.Contains(lower, "doc")
}
