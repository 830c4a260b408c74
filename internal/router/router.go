package router

import (
	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/handler"
	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
)

// Logics 路由依赖的业务逻辑集合
type Logics struct {
	Pool       *logic.PoolLogic
	Allocation *logic.AllocationLogic
	Contract   *logic.ContractLogic
	Commit     *logic.CommitLogic
	Perf       *logic.PerformanceLogic
	Vesting    *logic.VestingLogic
}

func Setup(logics Logics, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "developer-contracting-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 合约相关路由
		contractHandler := handler.NewContractHandler(logics.Contract)
		contracts := v1.Group("/contracts")
		{
			contracts.POST("", contractHandler.CreateContract)
			contracts.GET("/:id", contractHandler.GetContract)
			contracts.POST("/:id/sign", contractHandler.SignContract)
			contracts.GET("/:id/verify", contractHandler.VerifyContract)
			contracts.PUT("/:id/status", contractHandler.UpdateStatus)
			contracts.DELETE("/:id", contractHandler.TerminateContract)
		}
		v1.POST("/milestones/:milestoneId/complete", contractHandler.CompleteMilestone)

		// 代币池与分配路由
		poolHandler := handler.NewPoolHandler(logics.Pool, logics.Allocation, cfg.Token)
		pools := v1.Group("/pools")
		{
			pools.POST("", poolHandler.CreatePool)
			pools.GET("", poolHandler.GetSummary)
			pools.GET("/:id", poolHandler.GetPool)
		}
		v1.POST("/allocations", poolHandler.Allocate)

		// 仓库与提交路由
		repoHandler := handler.NewRepositoryHandler(logics.Commit)
		repos := v1.Group("/repositories")
		{
			repos.POST("", repoHandler.RegisterRepository)
			repos.GET("/:id", repoHandler.GetRepository)
			repos.POST("/:id/commits", repoHandler.RecordCommit)
			repos.GET("/:id/commits", repoHandler.ListCommits)
		}
		v1.GET("/commits/:commitId", repoHandler.GetCommit)
		v1.GET("/commits/:commitId/verify", repoHandler.VerifyCommit)

		// 开发者路由
		developerHandler := handler.NewDeveloperHandler(logics.Perf, logics.Contract, logics.Vesting)
		developers := v1.Group("/developers")
		{
			developers.GET("/:developerId/contracts", contractHandler.GetDeveloperContracts)
			developers.GET("/:developerId/allocations", poolHandler.GetDeveloperAllocations)
			developers.GET("/:developerId/performance", developerHandler.GetPerformance)
			developers.GET("/:developerId/summary", developerHandler.GetPerformanceSummary)
			developers.GET("/:developerId/vesting", developerHandler.GetVestingSchedules)
			developers.POST("/:developerId/flags", developerHandler.FlagSuspicious)
		}

		// 锁仓路由
		vestingHandler := handler.NewVestingHandler(logics.Vesting)
		vesting := v1.Group("/vesting")
		{
			vesting.POST("/release", vestingHandler.Release)
			vesting.DELETE("/:id", vestingHandler.Terminate)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
