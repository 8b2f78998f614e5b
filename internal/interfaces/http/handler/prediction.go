package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"drug-rec-api/internal/application/catalog"
	"drug-rec-api/internal/application/prediction"
	"drug-rec-api/internal/interfaces/http/dto"
	"drug-rec-api/pkg/errors"
	"drug-rec-api/pkg/logger"
)

// PredictionHandler 药品推荐处理器
type PredictionHandler struct {
	svc *prediction.Service
}

// NewPredictionHandler 创建推荐处理器
func NewPredictionHandler(svc *prediction.Service) *PredictionHandler {
	return &PredictionHandler{svc: svc}
}

// Predict 根据 keluhan 与 anamnesa 推荐药品
// @Summary 药品推荐
// @Tags Prediction
// @Accept json
// @Produce json
// @Param body body dto.PredictRequest true "推荐请求"
// @Success 200 {object} entity.PredictionResponse
// @Failure 400 {object} dto.DetailResponse
// @Failure 500 {object} dto.DetailResponse
// @Failure 503 {object} dto.DetailResponse
// @Router /predict [post]
func (h *PredictionHandler) Predict(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.Detail(c, errors.ErrInvalidParam.HTTPStatus, errors.ErrInvalidParam.Message)
		return
	}

	resp, err := h.svc.Predict(ctx, req.ToRaw())
	if err != nil {
		appErr := toAppError(err)
		if !appErr.ClientFault() {
			logger.Error(ctx, "prediction failed", err, "code", string(appErr.Code))
		}
		dto.Detail(c, appErr.HTTPStatus, appErr.Message)
		return
	}

	c.JSON(200, resp)
}

// toAppError 将应用层错误映射为带 HTTP 状态的 AppError；服务端错误不向客户端暴露原因
func toAppError(err error) *errors.AppError {
	var (
		ve  *prediction.ValidationError
		ee  *prediction.EncodingError
		sde *prediction.ScoreDomainError
		le  *catalog.LoadError
	)
	switch {
	case stderrors.As(err, &ve):
		return errors.New(errors.CodeValidationFailed, ve.Message).WithError(err)
	case stderrors.Is(err, catalog.ErrNotReady):
		return errors.ErrServiceUnavailable.WithError(err)
	case stderrors.Is(err, prediction.ErrTimeout):
		return errors.ErrTimeout.WithError(err)
	case stderrors.As(err, &ee):
		return errors.Wrap(err, errors.CodeEmbeddingFailed, errors.ErrInternalError.Message)
	case stderrors.As(err, &sde):
		return errors.Wrap(err, errors.CodeScoreDomain, errors.ErrInternalError.Message)
	case stderrors.As(err, &le):
		return errors.Wrap(err, errors.CodeCatalogFailed, errors.ErrInternalError.Message)
	default:
		return errors.ErrInternalError.WithError(err)
	}
}
