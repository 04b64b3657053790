package files

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"backend/internal/common"
	"backend/internal/storage"
)

// Handler 文件下载处理器，校验签名后回源本地磁盘
type Handler struct {
	store *storage.LocalStorage
}

// NewHandler 创建处理器
func NewHandler(store *storage.LocalStorage) *Handler {
	return &Handler{store: store}
}

// Download 按签名地址下载文件
// @Summary 下载已签名的文件
// @Tags Files
// @Param path path string true "对象键"
// @Param expires query string true "过期时间戳"
// @Param sig query string true "签名"
// @Success 200
// @Router /files/{path} [get]
func (h *Handler) Download(c *gin.Context) {
	key := c.Param("path")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	f, err := h.store.Open(key, c.Query("expires"), c.Query("sig"))
	if errors.Is(err, storage.ErrSignatureInvalid) {
		common.ResponseErrorCode(c, common.CodeForbidden, "链接无效或已过期")
		return
	}
	if os.IsNotExist(err) {
		common.ResponseErrorCode(c, common.CodeNotFound, "文件不存在")
		return
	}
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	defer f.Close()

	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}
