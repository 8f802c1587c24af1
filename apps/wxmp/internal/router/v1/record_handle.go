package v1

import (
	"WxAIServer/apps/wxmp/internal/dto"
	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/consts"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// RecordHandler AI 回复记录查询处理器
type RecordHandler struct {
	recordRepo repository.IRecordRepository
}

// NewRecordHandler 创建回复记录处理器
func NewRecordHandler(recordRepo repository.IRecordRepository) *RecordHandler {
	return &RecordHandler{
		recordRepo: recordRepo,
	}
}

// List 分页查询指定公众号的 AI 回复记录
// GET /api/v1/admin/records?app_id=xxx&page=1&page_size=20
func (h *RecordHandler) List(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	appId := c.Query("app_id")
	if appId == "" {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	records, total, err := h.recordRepo.ListByApp(ctx, appId, query.Page, query.PageSize)
	if err != nil {
		logger.Error(ctx, "查询回复记录失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, dto.PageResponse{
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
		List:     records,
	})
}
