package config

import (
	"github.com/blues/dcs/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Token    TokenConfig    `mapstructure:"token"`
	Vesting  VestingConfig  `mapstructure:"vesting"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 链配置
type ChainConfig struct {
	ChainType     string `mapstructure:"chain_type"`     // 链类型 (ethereum, polygon, etc.)
	ChainId       int64  `mapstructure:"chain_id"`       // 链ID
	RpcUrl        string `mapstructure:"rpc_url"`        // RPC节点URL
	PrivateKey    string `mapstructure:"private_key"`    // 私钥
	AnchorAddress string `mapstructure:"anchor_address"` // 锚定记录接收地址
	Confirmations int    `mapstructure:"confirmations"`  // 交易确认数
	InMemory      bool   `mapstructure:"in_memory"`      // 使用内存账本（开发/测试模式）
}

// TokenConfig 代币经济配置
type TokenConfig struct {
	TotalSupply        int64   `mapstructure:"total_supply"`         // 总供应量
	CurrentPoolPercent float64 `mapstructure:"current_pool_percent"` // 当前开发池占比
	FuturePoolPercent  float64 `mapstructure:"future_pool_percent"`  // 未来储备池占比
	LargeAllocation    int64   `mapstructure:"large_allocation"`     // 大额分配阈值（触发锁仓）
	CommitBaseRate     int64   `mapstructure:"commit_base_rate"`     // 每行代码基础代币数
	MilestoneLineRate  int64   `mapstructure:"milestone_line_rate"`  // 里程碑关联提交每行代币数
	QualityThreshold   float64 `mapstructure:"quality_threshold"`    // 仓库默认质量门槛
}

// VestingConfig 锁仓释放配置
type VestingConfig struct {
	DurationMonths int    `mapstructure:"duration_months"` // 锁仓总时长（月）
	CliffMonths    int    `mapstructure:"cliff_months"`    // 悬崖期（月）
	Interval       string `mapstructure:"interval"`        // 释放周期: monthly, quarterly, daily
}

type TaskConfig struct {
	VestingInterval int `mapstructure:"vesting_interval"` // 锁仓释放任务间隔（秒）
	AnchorInterval  int `mapstructure:"anchor_interval"`  // 锚定确认轮询间隔（秒）
	AnchorRetries   int `mapstructure:"anchor_retries"`   // 锚定提交最大重试次数
	AnchorWorkers   int `mapstructure:"anchor_workers"`   // 锚定协程池大小
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/dcs")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "contracting")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.chain_type", "ethereum")
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.confirmations", 12)
	viper.SetDefault("chain.in_memory", false)
	viper.SetDefault("token.total_supply", 1_000_000_000)
	viper.SetDefault("token.current_pool_percent", 0.25)
	viper.SetDefault("token.future_pool_percent", 0.25)
	viper.SetDefault("token.large_allocation", 15_000_000)
	viper.SetDefault("token.commit_base_rate", 1000)
	viper.SetDefault("token.milestone_line_rate", 500)
	viper.SetDefault("token.quality_threshold", 70)
	viper.SetDefault("vesting.duration_months", 12)
	viper.SetDefault("vesting.cliff_months", 3)
	viper.SetDefault("vesting.interval", "monthly")
	viper.SetDefault("task.vesting_interval", 3600)
	viper.SetDefault("task.anchor_interval", 60)
	viper.SetDefault("task.anchor_retries", 5)
	viper.SetDefault("task.anchor_workers", 8)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
