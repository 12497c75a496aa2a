package router

import (
	"net/http"
	"time"

	"walletlink/internal/config"
	"walletlink/internal/coordinator"
	"walletlink/internal/handler"
	"walletlink/internal/ledger"
	"walletlink/internal/middleware"
	"walletlink/internal/session"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures Gin engine and wires the session store,
// transaction ledger and coordinator behind the HTTP surface.
func SetupRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 核心组件：会话存储 + 账本 + 编排器
	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
	sessions := session.NewStore(db, ttl)
	lg := ledger.New(db)
	co := coordinator.New(sessions, lg)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Wallet Link Admin Backend API",
		})
	})

	// ====== API ======
	api := r.Group("/api")

	jwtSecret := cfg.JWT.Secret

	// 管理端登录（不需要鉴权）
	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours)
	api.POST("/admin/login", authHandler.Login)

	linkHandler := handler.NewLinkHandler(co, cfg.Server.BaseURL)
	txHandler := handler.NewTransactionHandler(co, cfg.App.PageSize)

	// 远端接口：凭 linkId 即可访问，不走管理端 JWT
	link := api.Group("/link")
	link.GET("/verify/:linkId", linkHandler.VerifyLink)
	link.POST("/connect/:linkId", linkHandler.ConnectWallet)
	link.POST("/activity/:linkId", linkHandler.UpdateActivity)
	link.GET("/transaction/:transactionId", txHandler.GetPendingTransaction)
	link.POST("/transaction/:transactionId/execute", txHandler.ExecuteTransaction)
	link.POST("/transaction/:transactionId/reject", txHandler.RejectTransaction)

	// 管理端接口：需要登录
	admin := api.Group("/admin")
	admin.Use(
		middleware.AuthMiddleware(jwtSecret, db),
		middleware.AuditMiddleware(db, cfg.Security.EncryptionKey),
	)

	admin.POST("/links", linkHandler.CreateLink)
	admin.GET("/links", linkHandler.ListLinks)
	admin.GET("/links/:linkId", linkHandler.GetLink)
	admin.DELETE("/links/:linkId", linkHandler.DeleteLink)
	admin.POST("/links/:linkId/transactions", txHandler.ProposeTransaction)

	admin.GET("/transactions", txHandler.ListTransactions)
	admin.GET("/transactions/:transactionId", txHandler.GetTransaction)
	admin.GET("/stats/transactions", txHandler.GetTransactionStats)

	exportHandler := handler.NewExportHandler(lg)
	admin.GET("/export/csv", exportHandler.ExportCSV)
	admin.GET("/export/xlsx", exportHandler.ExportXLSX)

	auditHandler := handler.NewAuditHandler(db, cfg.Security.EncryptionKey, cfg.App.PageSize)
	admin.GET("/audit-logs", auditHandler.ListAuditLogs)

	return r
}
