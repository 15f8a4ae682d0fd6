package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"asyncops/internal/logger"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

// fail maps service errors onto status codes. Anything that is not a
// service.Error is logged and reported as a bare 500.
func fail(c *gin.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.Error("request.failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		code = http.StatusUnauthorized
	}
	c.JSON(code, gin.H{"error": se.Msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// pageQuery rejects out-of-range values instead of clamping them.
func pageQuery(c *gin.Context) (service.PageQuery, bool) {
	q := service.PageQuery{Page: 1, Limit: service.DefaultPageLimit}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "page must be an integer >= 1")
			return q, false
		}
		q.Page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > service.MaxPageLimit {
			badRequest(c, "limit must be an integer between 1 and 100")
			return q, false
		}
		q.Limit = n
	}
	return q, true
}

func queryInt(c *gin.Context, key string) (*int, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return nil, false
	}
	return &n, true
}

func queryBool(c *gin.Context, key string) (bool, bool) {
	v := c.Query(key)
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		badRequest(c, key+" must be a boolean")
		return false, false
	}
	return b, true
}

// queryDate accepts YYYY-MM-DD.
func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	d, err := model.ParseDate(v)
	if err != nil {
		badRequest(c, key+" must be YYYY-MM-DD")
		return nil, false
	}
	t := time.Time(d)
	return &t, true
}

// queryTime accepts RFC 3339 or a bare date.
func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	return queryDate(c, key)
}

func page[T any](items []T, total int64, q service.PageQuery) model.Page[T] {
	if items == nil {
		items = []T{}
	}
	return model.Page[T]{Items: items, Total: total, Page: q.Page, Limit: q.Limit}
}
