// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"odatagate/internal/service"
)

// NewRouter собирает gin.Engine: OData под basePath, JSON-мета под /api.
func NewRouter(svc *service.Service, basePath string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandler(svc, basePath, logger)

	r := gin.New()
	r.Use(RequestID(), AccessLog(logger.Named("http")), Recovery(logger))

	// статические "служебные" маршруты
	r.GET("/api/meta", h.MetaList)
	r.GET("/api/meta/:namespace/:entity", h.MetaEntity)
	r.GET("/api/enums", h.MetaEnums)
	r.GET("/api/lint", h.Lint)

	// всё под базовым путём разбирает Resource
	odata := r.Group(h.base)
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		odata.Handle(method, "/*path", h.Resource)
	}
	return r
}
