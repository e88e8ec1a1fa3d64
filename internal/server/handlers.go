package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/medsafe/internal/apperr"
	"github.com/Skufu/medsafe/internal/checker"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/model"
)

type handlers struct {
	checker *checker.Checker
	store   kb.Store
	log     logging.Logger
}

type errorBody struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
}

// writeError renders err with the status its code maps to. Internal
// causes are logged, not returned.
func (h *handlers) writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	body := errorBody{Error: code, Message: err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Message = ae.Message
		body.Detail = ae.Detail
		if ae.Cause != nil && code != apperr.CodeInternal && code != apperr.CodeStorageUnavailable {
			body.Detail = joinDetail(body.Detail, ae.Cause.Error())
		}
	}
	status := apperr.HTTPStatus(code)
	if status >= 500 {
		h.log.Error("request failed", logging.Err(err), logging.String("request_id", c.GetString(requestIDKey)))
		if code == apperr.CodeInternal {
			body.Message = "internal error"
			body.Detail = ""
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + ": " + b
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
			Error:   apperr.CodeInvalidInput,
			Message: "request body too large",
		})
		return
	}
	h.writeError(c, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid payload"))
}

type checkRequest struct {
	Medications []string `json:"medications"`
}

func (h *handlers) checkInteraction(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	res, err := h.checker.Check(req.Medications)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) lookupDrug(c *gin.Context) {
	d, err := h.store.LookupDrug(c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) addDrug(c *gin.Context) {
	var d model.Drug
	if err := c.ShouldBindJSON(&d); err != nil {
		h.badRequest(c, err)
		return
	}
	added, err := h.store.AddDrug(c.Request.Context(), d)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

type synonymRequest struct {
	Synonym string `json:"synonym"`
}

func (h *handlers) addSynonym(c *gin.Context) {
	var req synonymRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	id := c.Param("id")
	if err := h.store.AddSynonym(c.Request.Context(), id, req.Synonym); err != nil {
		h.writeError(c, err)
		return
	}
	d, err := h.store.LookupDrug(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type factRequest struct {
	Drugs       []string       `json:"drugs"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description"`
	Override    bool           `json:"override"`
}

func (h *handlers) upsertFact(c *gin.Context) {
	var req factRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	f, err := h.store.UpsertFact(c.Request.Context(), req.Drugs, req.Severity, req.Description, req.Override)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *handlers) listFacts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": h.store.Version(),
		"facts":   h.store.Facts(),
	})
}

func (h *handlers) export(c *gin.Context) {
	c.YAML(http.StatusOK, h.store.Dataset())
}

// importDataset replaces the whole KB with a YAML or JSON dataset body.
func (h *handlers) importDataset(c *gin.Context) {
	ds, err := kb.DecodeDataset(c.Request.Body)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.store.Replace(c.Request.Context(), ds); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": h.store.Version(),
		"drugs":   len(h.store.Drugs()),
		"facts":   len(h.store.Facts()),
	})
}
