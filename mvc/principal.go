package mvc

import (
	"slices"

	"github.com/gin-gonic/gin"
)

// Principal is the caller as seen by the authorization stage.
// The zero value is anonymous.
type Principal struct {
	Name  string
	Roles []string
}

func (p Principal) IsAuthenticated() bool { return p.Name != "" }

func (p Principal) IsInRole(role string) bool { return slices.Contains(p.Roles, role) }

// PrincipalResolver identifies the caller of a request.
type PrincipalResolver func(c *gin.Context) Principal

// Anonymous resolves every request to the anonymous principal.
func Anonymous(*gin.Context) Principal { return Principal{} }
