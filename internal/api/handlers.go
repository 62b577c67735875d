package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/csdl"
	"odatagate/internal/dispatch"
	"odatagate/internal/service"
)

const (
	contentTypeJSON = "application/json;odata.metadata=minimal"
	maxPayloadBytes = 4 << 20
)

// Handler: адаптер протокола поверх service.Service.
type Handler struct {
	svc    *service.Service
	base   string
	logger *zap.Logger
}

func NewHandler(svc *service.Service, basePath string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:    svc,
		base:   strings.TrimRight(basePath, "/"),
		logger: logger,
	}
}

// Resource: единая точка входа для всего под базовым путём:
// service document, $metadata и ресурсы.
func (h *Handler) Resource(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	switch {
	case path == "" && c.Request.Method == http.MethodGet:
		h.ServiceDocument(c)
		return
	case path == "$metadata" && c.Request.Method == http.MethodGet:
		h.Metadata(c)
		return
	}

	op, ok := operationFor(c.Request.Method)
	if !ok {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, errorBody{
			Error: errorDetail{Code: "method_not_allowed", Message: c.Request.Method + " is not supported"},
		})
		return
	}

	res, err := h.parsePath(path)
	if err != nil {
		h.fail(c, err)
		return
	}

	req := &dispatch.Request{
		Operation:   op,
		Path:        res.segments,
		ContentType: c.ContentType(),
	}
	if op == dispatch.OpCreate || op == dispatch.OpUpdate {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
		if err != nil {
			h.fail(c, errors.Wrap(dispatch.ErrInvalidRequest, "read body"))
			return
		}
		if len(body) > maxPayloadBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
				Error: errorDetail{Code: "payload_too_large", Message: "request body too large"},
			})
			return
		}
		if c.Request.Method == http.MethodPut && res.entityType != nil {
			if err := checkContentType(req.ContentType); err != nil {
				h.fail(c, err)
				return
			}
			if body, err = completeForReplace(res.entityType, body); err != nil {
				h.fail(c, err)
				return
			}
		}
		req.Payload = body
	}

	resp, err := h.svc.Dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, op, resp)
}

func operationFor(method string) (dispatch.Operation, bool) {
	switch method {
	case http.MethodGet:
		return dispatch.OpRead, true
	case http.MethodPost:
		return dispatch.OpCreate, true
	case http.MethodPut, http.MethodPatch:
		return dispatch.OpUpdate, true
	case http.MethodDelete:
		return dispatch.OpDelete, true
	}
	return 0, false
}

func (h *Handler) respond(c *gin.Context, op dispatch.Operation, resp *dispatch.Response) {
	if op == dispatch.OpDelete {
		c.Status(http.StatusNoContent)
		return
	}
	var buf bytes.Buffer
	setName := resp.EntitySet.Name
	if resp.Collection != nil {
		if err := writeCollection(&buf, resp.EntityType, resp.Collection, h.contextURL(c, setName)); err != nil {
			h.fail(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeJSON, buf.Bytes())
		return
	}
	if err := writeEntity(&buf, resp.EntityType, resp.Entity, h.contextURL(c, setName+"/$entity")); err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if op == dispatch.OpCreate {
		status = http.StatusCreated
		if loc, ok := h.entityLocation(c, resp); ok {
			c.Header("Location", loc)
		}
	}
	c.Data(status, contentTypeJSON, buf.Bytes())
}

// ServiceDocument: GET {base}/
func (h *Handler) ServiceDocument(c *gin.Context) {
	type entry struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		URL  string `json:"url"`
	}
	out := make([]entry, 0)
	for _, set := range h.svc.Provider.EntitySets() {
		out = append(out, entry{Name: set.Name, Kind: "EntitySet", URL: set.Name})
	}
	c.JSON(http.StatusOK, gin.H{
		"@odata.context": h.contextURL(c, ""),
		"value":          out,
	})
}

// Metadata: GET {base}/$metadata
func (h *Handler) Metadata(c *gin.Context) {
	doc, err := csdl.Marshal(h.svc.Schemas)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("OData-Version", csdl.Version)
	c.Data(http.StatusOK, csdl.ContentType, doc)
}

func (h *Handler) serviceRoot(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host + h.base
}

func (h *Handler) contextURL(c *gin.Context, fragment string) string {
	u := h.serviceRoot(c) + "/$metadata"
	if fragment != "" {
		u += "#" + fragment
	}
	return u
}

// entityLocation: {root}/People(5) или {root}/Lines(order=1,no=2)
func (h *Handler) entityLocation(c *gin.Context, resp *dispatch.Response) (string, bool) {
	et := resp.EntityType
	if et == nil || resp.Entity == nil || len(et.Key) == 0 {
		return "", false
	}
	keys := make(dispatch.Keys, 0, len(et.Key))
	for _, k := range et.Key {
		v, ok := resp.Entity.Get(k.Name)
		if !ok || v == nil {
			return "", false
		}
		keys = append(keys, dispatch.KeyPredicate{Name: k.Name, Value: v})
	}
	text := keys.String()
	if len(keys) == 1 {
		text = "(" + strings.TrimPrefix(text[1:len(text)-1], keys[0].Name+"=") + ")"
	}
	return h.serviceRoot(c) + "/" + resp.EntitySet.Name + text, true
}
