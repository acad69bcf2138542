package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"projecthub-service/internal/repository"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination describes the page returned in a list
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Limit       int `json:"limit"`
}

// PageData is the data of a paginated response
type PageData struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Pagination Pagination  `json:"pagination"`
}

func newPage[T any](items []T, total int64, p repository.Page) PageData {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageData{
		Items: items,
		Total: total,
		Pagination: Pagination{
			CurrentPage: p.Page,
			TotalPages:  pages,
			Limit:       p.Limit,
		},
	}
}

func ok(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// pageParam reads page and limit query parameters, falling back to def
// for the limit
func pageParam(c echo.Context, def int) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.NewPage(page, limit, def)
}

// ErrorHandler writes every error as a failed envelope. Coded errors keep
// their status and message; anything else is logged and reported as a 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	log := logger.FromEcho(c)
	var (
		status int
		body   = Response{Success: false}
		he     *echo.HTTPError
	)

	if errors.As(err, &he) {
		status = he.Code
		body.Message = fmt.Sprint(he.Message)
		if he.Internal != nil {
			log.Debug("HTTP error", zap.Int("status", status), zap.Error(he.Internal))
		}
	} else {
		code := apperr.ErrorCode(err)
		status = apperr.HTTPStatus(code)
		body.Message = apperr.ErrorMessage(err)
		body.Code = apperr.ErrorReason(err)

		switch code {
		case apperr.EInternal:
			log.Error("Unhandled error",
				zap.String("op", apperr.ErrorOp(err)),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		case apperr.EForbidden:
			if body.Code != apperr.ReasonQuotaExceeded {
				prometheus.RecordPolicyDenial(body.Code)
			}
		}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		log.Error("Failed to write error response", zap.Error(writeErr))
	}
}
