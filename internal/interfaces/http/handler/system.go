// Package handler 提供 HTTP 请求处理器
package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/application/prediction"
	"drug-rec-api/internal/interfaces/http/dto"
)

var endpoints = map[string]string{
	"GET /":            "Health check",
	"GET /health":      "Health check",
	"GET /live":        "Liveness check",
	"GET /ready":       "Readiness check",
	"GET /status":      "Initialization status",
	"GET /stats":       "Catalog statistics",
	"POST /initialize": "Reload the drug catalog",
	"POST /predict":    "Recommend drugs for keluhan and anamnesa",
}

// SystemHandler 健康检查、状态与初始化处理器
type SystemHandler struct {
	version string
	store   *catalog.Store
	init    *catalog.Initializer
	svc     *prediction.Service
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(version string, store *catalog.Store, init *catalog.Initializer, svc *prediction.Service) *SystemHandler {
	return &SystemHandler{
		version: version,
		store:   store,
		init:    init,
		svc:     svc,
	}
}

// Health 健康检查
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.HealthResponse]
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	st := h.init.Status()
	dto.Success(c, dto.HealthResponse{
		Status:         "ok",
		Message:        "Drug Recommendation API is running",
		Version:        h.version,
		Ready:          h.store.Ready(),
		Initialization: &st,
		Endpoints:      endpoints,
	})
}

// Live 存活检查
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.HealthResponse]
// @Router /live [get]
func (h *SystemHandler) Live(c *gin.Context) {
	dto.Success(c, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.store.Ready(),
	})
}

// Ready 就绪检查：目录快照发布后才返回 200
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.ReadyResponse]
// @Failure 503 {object} dto.Response[dto.ReadyResponse]
// @Router /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.store.Ready() {
		dto.Success(c, dto.ReadyResponse{
			Status:   "ready",
			Message:  "API siap melayani permintaan",
			Progress: 100,
		})
		return
	}
	st := h.init.Status()
	dto.Fail(c, http.StatusServiceUnavailable, "not ready", dto.ReadyResponse{
		Status:   "not_ready",
		Message:  fmt.Sprintf("inisialisasi %s: %s", st.State, st.Message),
		Progress: st.Progress,
	})
}

// Status 初始化状态
// @Summary 初始化状态
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[catalog.Status]
// @Router /status [get]
func (h *SystemHandler) Status(c *gin.Context) {
	dto.Success(c, h.init.Status())
}

// Stats 目录统计
// @Summary 目录统计
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.StatsResponse]
// @Failure 503 {object} dto.Response[any]
// @Router /stats [get]
func (h *SystemHandler) Stats(c *gin.Context) {
	snap := h.store.Snapshot()
	if snap == nil {
		dto.Fail[any](c, http.StatusServiceUnavailable, "katalog obat belum dimuat", nil)
		return
	}
	dto.Success(c, dto.StatsResponse{
		TotalDrugs: snap.Size(),
		Dimension:  snap.Dimension,
		Encoder:    snap.Encoder,
		Source:     snap.Source,
		LoadedAt:   snap.LoadedAt,
		Prediction: h.svc.Settings(),
	})
}

// Initialize 在后台重新加载目录；已有加载在运行时返回其进度
// @Summary 重新加载目录
// @Tags System
// @Produce json
// @Success 202 {object} dto.Response[dto.InitializeResponse]
// @Success 200 {object} dto.Response[dto.InitializeResponse]
// @Router /initialize [post]
func (h *SystemHandler) Initialize(c *gin.Context) {
	if h.init.Start(c.Request.Context()) {
		dto.Accepted(c, dto.InitializeResponse{
			Status:  "started",
			Message: "inisialisasi dimulai",
		})
		return
	}
	st := h.init.Status()
	dto.Success(c, dto.InitializeResponse{
		Status:   "in_progress",
		Message:  "inisialisasi sedang berjalan",
		Progress: st.Progress,
	})
}
