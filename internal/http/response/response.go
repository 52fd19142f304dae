package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
)

// Envelope is the body of every JSON response
type Envelope struct {
	Success    bool               `json:"success"`
	Data       interface{}        `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
	Error      *ErrorBody         `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message answers 200 with a human readable confirmation and no data
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: msg})
}

// List answers a page of items with its pagination block
func List(c *gin.Context, items interface{}, page domain.Page, total int64) {
	pages := 0
	if page.Limit > 0 {
		pages = int((total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Pagination: &domain.Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: pages,
		},
	})
}

func Error(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}
