// api/schema_lint.go
package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"odatagate/internal/edm"
)

type SchemaIssue struct {
	Entity  string `json:"entity"` // FQN: namespace.Entity
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Коды замечаний
const (
	IssueNoController    = "no_controller"
	IssueNotListable     = "not_listable"
	IssueCompositeRefKey = "reference_composite_key"
)

// SchemaLint проверяет собранную схему на то, что не мешает сборке,
// но ограничивает работу сервиса.
func (h *Handler) SchemaLint() []SchemaIssue {
	var issues []SchemaIssue
	provider := h.svc.Provider

	for _, s := range provider.Schemas() {
		for i := range s.EntityTypes {
			et := &s.EntityTypes[i]
			fqn := edm.NewFQN(s.Namespace, et.Name)
			name := fqn.String()

			bound, listable := h.svc.Dispatcher.Capabilities(fqn)
			switch {
			case !bound:
				issues = append(issues, SchemaIssue{
					Entity:  name,
					Code:    IssueNoController,
					Message: "no controller bound; every request against the entity set fails with 501",
				})
			case !listable:
				issues = append(issues, SchemaIssue{
					Entity:  name,
					Code:    IssueNotListable,
					Message: "controller does not implement listing; reads without a key fail with 501",
				})
			}

			// одиночная ссылка на составной ключ не получает колонку в pg
			for _, nav := range et.NavigationProperties {
				if nav.Collection {
					continue
				}
				target, err := provider.EntityType(nav.Type)
				if err != nil || len(target.Key) == 1 {
					continue
				}
				issues = append(issues, SchemaIssue{
					Entity:  name,
					Field:   nav.Name,
					Code:    IssueCompositeRefKey,
					Message: fmt.Sprintf("%s has a composite key; the reference is not stored in PostgreSQL", nav.Type),
				})
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Entity != issues[j].Entity {
			return issues[i].Entity < issues[j].Entity
		}
		return issues[i].Field < issues[j].Field
	})
	return issues
}

// Lint: GET /api/lint
func (h *Handler) Lint(c *gin.Context) {
	issues := h.SchemaLint()
	if issues == nil {
		issues = []SchemaIssue{}
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}
