package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// PolicyHandlers lets admins inspect and edit the route authorization table
type PolicyHandlers struct {
	admin *services.AdminService
}

func NewPolicyHandlers(admin *services.AdminService) *PolicyHandlers {
	return &PolicyHandlers{admin: admin}
}

type policyReq struct {
	Role   string `json:"role" binding:"required,oneof=buyer seller admin member"`
	Path   string `json:"path" binding:"required,startswith=/api/"`
	Method string `json:"method" binding:"required"`
}

func (r policyReq) policy() services.Policy {
	return services.Policy{Role: r.Role, Path: r.Path, Method: r.Method}
}

func (h *PolicyHandlers) List(c *gin.Context) {
	policies, err := h.admin.Policies()
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, policies)
}

func (h *PolicyHandlers) Add(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	var r policyReq
	if !bindJSON(c, &r) {
		return
	}
	if err := h.admin.AddPolicy(c.Request.Context(), by, r.policy()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PolicyHandlers) Remove(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	var r policyReq
	if !bindJSON(c, &r) {
		return
	}
	if err := h.admin.RemovePolicy(c.Request.Context(), by, r.policy()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
