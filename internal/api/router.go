package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"go-stream-extract/internal/api/handler"
	"go-stream-extract/pkg/router"
)

func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/runs", handler.CreateRun)
	r.GET("/api/v1/runs", handler.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/errors", handler.GetRunErrors)
	r.GET("/api/v1/runs/*/logs", handler.GetRunLogs)
	r.GET("/api/v1/runs/*/progress", handler.GetRunProgress)
	r.GET("/api/v1/runs/*/files", handler.GetRunFiles)
	// Generic run route last
	r.GET("/api/v1/runs/*", handler.GetRun)

	r.GET("/api/v1/state", handler.GetState)
	r.GET("/api/v1/download/*/*", handler.DownloadFile)

	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
