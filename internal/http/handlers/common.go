package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/middleware"
	"github.com/you/mcmarket/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RegisterValidators installs the custom binding rules and reports field
// names by their JSON tags
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	authorityNumber := func(fl validator.FieldLevel) bool {
		_, ok := services.NormalizeNumber(fl.Field().String())
		return ok
	}
	if err := v.RegisterValidation("mcnumber", authorityNumber); err != nil {
		return err
	}
	return v.RegisterValidation("dotnumber", authorityNumber)
}

// bindJSON binds the body into dst and records the failure on c
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.Error(err)
		} else {
			c.Error(&domain.AppError{Kind: domain.KindValidation, Message: "Invalid request body", Err: err})
		}
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.Error(domain.NewValidation("Invalid " + name))
		return 0, false
	}
	return uint(id), true
}

func pageFrom(c *gin.Context) domain.Page {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return domain.Page{Page: page, Limit: limit}
}

// actor returns the authenticated caller. Routes using it sit behind WithJWT.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		c.Error(domain.ErrUnauthorized)
	}
	return a, ok
}

func adminFrom(c *gin.Context) (services.Admin, bool) {
	a, ok := actor(c)
	if !ok {
		return services.Admin{}, false
	}
	return services.Admin{ID: a.ID, IP: c.ClientIP()}, true
}
