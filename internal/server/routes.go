package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerstack/ledgerstack/constants"
	"github.com/ledgerstack/ledgerstack/internal/common"
	"github.com/ledgerstack/ledgerstack/internal/docai"
	"github.com/ledgerstack/ledgerstack/internal/repository"
)

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	apiGroup.GET("/health", api.handleHealth)

	authed := apiGroup.Group("", Auth())
	{
		authed.POST("/extractions", MaxBodySize(api.cfg.MaxUploadBytes), api.handleUpload)
		authed.GET("/extractions", api.handleList)
		authed.GET("/extractions/:id", api.handleGet)
		authed.DELETE("/extractions/:id", api.handleDelete)
		authed.DELETE("/extractions", api.handlePurge)

		authed.POST("/extractions/:id/recognize", api.handleRecognize)
		authed.PUT("/extractions/:id/text", api.handleSaveText)
		authed.POST("/extractions/:id/extract", api.handleExtract)
		authed.PUT("/extractions/:id/data", api.handleSaveData)
		authed.POST("/extractions/:id/verify", api.handleVerify)
		authed.POST("/extractions/bulk", api.handleBulk)

		authed.GET("/records/export", api.handleExport)
	}

	r.GET("/objects/*key", api.handleServeObject)
}

type extractionView struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Status    string          `json:"status"`
	Text      *string         `json:"text,omitempty"`
	Category  *string         `json:"category,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func toView(e *repository.Extraction) extractionView {
	return extractionView{
		ID:        e.ID.String(),
		Filename:  e.Filename,
		Status:    string(e.Status),
		Text:      e.Text,
		Category:  e.Category,
		Data:      e.Payload,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// modelRequest carries the per-call model selection. Credentials are never
// ambient; they ride on the request that needs them.
type modelRequest struct {
	Model       string `json:"model"`
	ProviderKey string `json:"provider_key"`
}

func (m modelRequest) config() docai.ModelConfig {
	return docai.ModelConfig{Model: m.Model, ProviderKey: m.ProviderKey}
}

func bindOptionalModel(c *gin.Context) (modelRequest, bool) {
	var m modelRequest
	if c.Request.ContentLength == 0 {
		return m, true
	}
	if err := c.ShouldBindJSON(&m); err != nil {
		respondAppError(c, common.InvalidInputError("malformed request body"))
		return m, false
	}
	return m, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondAppError(c, common.InvalidInputError("invalid extraction id"))
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondAppError(c, common.InvalidInputError("file is required"))
		return
	}

	ext := constants.NormalizeExt(strings.ToLower(filepathExt(fh.Filename)))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		respondAppError(c, common.InvalidInputErrorf("unsupported file extension %q", ext))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondAppError(c, common.InvalidInputError("cannot read uploaded file"))
		return
	}
	defer f.Close()

	sample := make([]byte, 512)
	n, rerr := f.Read(sample)
	if rerr != nil && rerr != io.EOF {
		respondAppError(c, common.InvalidInputError("cannot read uploaded file"))
		return
	}
	sample = sample[:n]

	contentType := strings.ToLower(http.DetectContentType(sample))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if _, ok := constants.AllowedContentTypes[contentType]; !ok {
		respondAppError(c, common.InvalidInputErrorf("unsupported content type %q", contentType))
		return
	}

	body := io.MultiReader(bytes.NewReader(sample), f)
	e, err := a.pipeline.Upload(c.Request.Context(), ownerFrom(c), fh.Filename, contentType, body)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(e))
}

func (a *API) handleList(c *gin.Context) {
	list, err := a.pipeline.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		respondAppError(c, err)
		return
	}
	out := make([]extractionView, 0, len(list))
	for _, e := range list {
		out = append(out, toView(e))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) handleGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := a.pipeline.Get(c.Request.Context(), ownerFrom(c), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

func (a *API) handleDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := a.pipeline.Delete(c.Request.Context(), ownerFrom(c), id); err != nil {
		respondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handlePurge(c *gin.Context) {
	objects, records, err := a.pipeline.PurgeOwner(c.Request.Context(), ownerFrom(c))
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects_deleted": objects, "records_deleted": records})
}

func (a *API) handleRecognize(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, ok := bindOptionalModel(c)
	if !ok {
		return
	}
	e, err := a.pipeline.Recognize(c.Request.Context(), ownerFrom(c), id, m.config())
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

func (a *API) handleSaveText(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondAppError(c, common.InvalidInputError("text is required"))
		return
	}
	e, err := a.pipeline.SaveText(c.Request.Context(), ownerFrom(c), id, payload.Text)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

func (a *API) handleExtract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, ok := bindOptionalModel(c)
	if !ok {
		return
	}
	e, err := a.pipeline.Extract(c.Request.Context(), ownerFrom(c), id, m.config())
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

func (a *API) handleSaveData(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Category string          `json:"category" binding:"required"`
		Data     json.RawMessage `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondAppError(c, common.InvalidInputError("category and data are required"))
		return
	}
	e, err := a.pipeline.SaveExtracted(c.Request.Context(), ownerFrom(c), id, payload.Category, payload.Data)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

func (a *API) handleVerify(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Data json.RawMessage `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondAppError(c, common.InvalidInputError("data is required"))
		return
	}
	e, err := a.pipeline.Verify(c.Request.Context(), ownerFrom(c), id, payload.Data)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(e))
}

type bulkItemView struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

func (a *API) handleBulk(c *gin.Context) {
	var payload struct {
		IDs         []string `json:"ids" binding:"required"`
		Model       string   `json:"model"`
		ProviderKey string   `json:"provider_key"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondAppError(c, common.InvalidInputError("ids are required"))
		return
	}
	if len(payload.IDs) == 0 {
		respondAppError(c, common.InvalidInputError("ids must not be empty"))
		return
	}

	ids := make([]uuid.UUID, 0, len(payload.IDs))
	for _, raw := range payload.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondAppError(c, common.InvalidInputErrorf("invalid extraction id %q", raw))
			return
		}
		ids = append(ids, id)
	}

	mc := docai.ModelConfig{Model: payload.Model, ProviderKey: payload.ProviderKey}
	results := a.pipeline.BulkProcess(c.Request.Context(), ownerFrom(c), ids, mc)

	out := make([]bulkItemView, 0, len(results))
	for _, r := range results {
		item := bulkItemView{ID: r.ID.String(), Stage: r.Stage, OK: r.OK()}
		if r.Err != nil {
			item.Code = common.ErrorCode(r.Err)
			item.Error = errorMessage(r.Err)
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (a *API) handleExport(c *gin.Context) {
	cat, ok := constants.Canonicalize(c.Query("category"))
	if !ok {
		respondAppError(c, common.InvalidInputErrorf("unknown category %q", c.Query("category")))
		return
	}
	rng, err := dateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondAppError(c, err)
		return
	}
	b, err := a.export.ExportXLSX(c.Request.Context(), ownerFrom(c), cat, rng)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(string(cat), " ", "-")+`.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

func (a *API) handleServeObject(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		c.Status(http.StatusForbidden)
		return
	}
	signedPath := "/objects/" + key
	if !a.store.ValidateSignedPath(signedPath, exp, c.Query("sig")) {
		c.Status(http.StatusForbidden)
		return
	}

	f, err := a.store.Open(c.Request.Context(), key)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}

// dateRange validates optional YYYY-MM-DD bounds from query parameters.
func dateRange(from, to string) (repository.DateRange, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return repository.DateRange{}, common.InvalidInputErrorf("invalid date %q, want YYYY-MM-DD", d)
		}
	}
	return repository.DateRange{From: from, To: to}, nil
}

func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
