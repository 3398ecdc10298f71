package api

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/catalog"
	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/tabular"
)

// EntityHandler serves the CRUD, listing and spreadsheet endpoints of one record type
type EntityHandler[T any] struct {
	*Handler
	module *catalog.Module[T]
}

// registerEntity mounts the routes of a module under /<name> and returns the
// group so callers can add module-specific routes. Global record types are
// readable by every caller but written only by platform callers.
func registerEntity[T any](api *gin.RouterGroup, h *Handler, m *catalog.Module[T]) *gin.RouterGroup {
	eh := &EntityHandler[T]{Handler: h, module: m}
	name := m.Name()

	g := api.Group("/" + name)
	if m.IsPlatformOnly() {
		g.Use(h.RequirePlatform())
	}

	write := func(action auth.Action, handler gin.HandlerFunc) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{h.RequirePrivilege(name, action), handler}
		if !m.Descriptor().TenantScoped {
			chain = append([]gin.HandlerFunc{h.RequirePlatform()}, chain...)
		}
		return chain
	}

	{
		g.GET("", h.RequirePrivilege(name, auth.ActionView), eh.List)
		g.GET("/xlsx-template", h.RequirePrivilege(name, auth.ActionImport), eh.Template)
		g.GET("/export", h.RequirePrivilege(name, auth.ActionExport), eh.Export)
		g.GET("/:id", h.RequirePrivilege(name, auth.ActionView), eh.Get)

		g.POST("", write(auth.ActionCreate, eh.Create)...)
		g.POST("/import", write(auth.ActionImport, eh.Import)...)
		g.PUT("/:id", write(auth.ActionEdit, eh.Update)...)
		g.PATCH("/:id", write(auth.ActionEdit, eh.Update)...)
		g.PATCH("/:id/deactivate", write(auth.ActionEdit, eh.Deactivate)...)
		g.DELETE("/:id", write(auth.ActionDelete, eh.Delete)...)
	}
	return g
}

// List returns a paginated list of records
// GET /api/:entity
func (eh *EntityHandler[T]) List(c *gin.Context) {
	filters, spec, page := listParams(c)
	result, err := eh.module.Service.List(c.Request.Context(), filters, spec, page, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns a single record
// GET /api/:entity/:id
func (eh *EntityHandler[T]) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	record, err := eh.module.Service.Find(c.Request.Context(), id, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Create creates a new record
// POST /api/:entity
func (eh *EntityHandler[T]) Create(c *gin.Context) {
	data, ok := bindPayload(c)
	if !ok {
		return
	}
	record, err := eh.module.Service.CreateFromMap(c.Request.Context(), data, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// Update applies a partial update
// PUT /api/:entity/:id
// PATCH /api/:entity/:id
func (eh *EntityHandler[T]) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	data, ok := bindPayload(c)
	if !ok {
		return
	}
	record, err := eh.module.Service.Update(c.Request.Context(), id, data, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Deactivate clears the active flag
// PATCH /api/:entity/:id/deactivate
func (eh *EntityHandler[T]) Deactivate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	record, err := eh.module.Service.Deactivate(c.Request.Context(), id, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete deletes a record
// DELETE /api/:entity/:id
func (eh *EntityHandler[T]) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := eh.module.Service.Delete(c.Request.Context(), id, userContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted successfully"})
}

// Template downloads the import template
// GET /api/:entity/xlsx-template
func (eh *EntityHandler[T]) Template(c *gin.Context) {
	format, err := tabular.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}
	sheet := eh.module.Template(c.Request.Context())
	writeSheet(c, sheet, format, eh.module.Name()+"_template")
}

// Import loads an uploaded spreadsheet. A partially failed import answers 400
// with the full result so the caller can fix the reported rows.
// POST /api/:entity/import
func (eh *EntityHandler[T]) Import(c *gin.Context) {
	engineCfg := eh.cfg.Engine
	if engineCfg.ImportMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, engineCfg.ImportMaxBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "FILE_TOO_LARGE",
				"message": fmt.Sprintf("the uploaded file exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		respondError(c, apperrors.NewBadRequestError("a file field is required"))
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	if engineCfg.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, engineCfg.ImportTimeout)
		defer cancel()
	}

	result, err := eh.module.Import(ctx, file, header.Filename, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"message": result.Message, "data": result})
}

// Export downloads the filtered listing as a spreadsheet
// GET /api/:entity/export?format=xlsx|csv
func (eh *EntityHandler[T]) Export(c *gin.Context) {
	format, err := tabular.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}
	filters, spec, _ := listParams(c)
	sheet, err := eh.module.Export(c.Request.Context(), filters, spec, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	writeSheet(c, sheet, format, eh.module.Name()+"_export")
}

// bindPayload decodes a JSON object body, writing a 400 when it is not one
func bindPayload(c *gin.Context) (map[string]interface{}, bool) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil || data == nil {
		respondError(c, apperrors.NewBadRequestError("invalid request body"))
		return nil, false
	}
	return data, true
}

// writeSheet renders sheet and sends it as an attachment
func writeSheet(c *gin.Context, sheet *tabular.Sheet, format tabular.Format, basename string) {
	w := tabular.NewWriter(format)
	var buf bytes.Buffer
	if err := w.Write(&buf, sheet); err != nil {
		respondError(c, apperrors.NewInternalError(fmt.Errorf("failed to render sheet %s: %w", sheet.Title, err)))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, basename, w.Extension()))
	c.Data(http.StatusOK, w.ContentType(), buf.Bytes())
}
