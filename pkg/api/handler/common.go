// Package handler API处理器
package handler

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/api/dto"
)

// respondError 将错误按Kind映射为HTTP响应
// Internal类错误的细节不出站，只记进程日志
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	message := apperr.MessageOf(err)
	if kind == apperr.Internal {
		log.Printf("❌ [%s] %v", c.FullPath(), err)
		message = "internal error"
	}

	c.JSON(status, dto.NewErrorResponse(status, message))
}

// timeSince 便于测试替换的时间差
var timeSince = time.Since
