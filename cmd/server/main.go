package main

import (
	"github.com/blues/dcs/internal/anchor"
	"github.com/blues/dcs/internal/analysis"
	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/ledger"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/repository"
	"github.com/blues/dcs/internal/router"
	"github.com/blues/dcs/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/lightningnetwork/lnd/clock"
	"gorm.io/gorm"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	log, err := logger.NewWithFileRotation(logger.ParseLogLevel(cfg.Log.Level), cfg.Log.File)
	if err == nil {
		logger.SetDefaultLogger(log)
	}
	defer logger.Sync()

	// 初始化数据库
	var db *gorm.DB
	if cfg.Chain.InMemory {
		db, err = repository.InitSQLite("dcs.db")
	} else {
		db, err = repository.Init(cfg.Database)
	}
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化账本适配器
	var adapter ledger.Adapter
	if cfg.Chain.InMemory {
		adapter = ledger.NewMemoryAdapter()
	} else {
		adapter, err = ledger.NewEthereumAdapter(cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize ledger adapter: %v", err)
		}
	}

	clk := clock.NewDefaultClock()

	// 初始化锚定工作池
	worker, err := anchor.NewWorker(db, adapter, cfg.Task, clk)
	if err != nil {
		logger.Fatal("Failed to initialize anchor worker: %v", err)
	}
	defer worker.Stop()

	// 组装业务逻辑
	poolLogic := logic.NewPoolLogic(db)
	perfLogic := logic.NewPerformanceLogic(db)
	vestingLogic := logic.NewVestingLogic(db, cfg.Vesting, cfg.Token.LargeAllocation, clk, perfLogic)
	allocLogic := logic.NewAllocationLogic(db, poolLogic, perfLogic, vestingLogic, worker, clk)
	contractLogic := logic.NewContractLogic(db, adapter, allocLogic, perfLogic, clk)
	commitLogic := logic.NewCommitLogic(db, analysis.NewHeuristicAnalyzer(), adapter, allocLogic, worker, cfg.Token, clk)

	// 初始化默认代币池
	if err := poolLogic.EnsureDefaultPools(cfg.Token); err != nil {
		logger.Fatal("Failed to ensure default pools: %v", err)
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(router.Logics{
		Pool:       poolLogic,
		Allocation: allocLogic,
		Contract:   contractLogic,
		Commit:     commitLogic,
		Perf:       perfLogic,
		Vesting:    vestingLogic,
	}, cfg)

	// 启动定时任务
	manager := task.NewManager(cfg, vestingLogic, worker)
	manager.Start()
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
