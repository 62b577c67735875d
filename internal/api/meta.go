package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
	"odatagate/internal/metadata"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Namespace string `json:"namespace"`
	Entity    string `json:"entity"`
	EntitySet string `json:"entitySet,omitempty"`
}

// MetaList: GET /api/meta
func (h *Handler) MetaList(c *gin.Context) {
	sets := map[edm.FullQualifiedName]string{}
	for _, set := range h.svc.Provider.EntitySets() {
		sets[set.Type] = set.Name
	}
	out := make([]metaEntityListItem, 0)
	for _, s := range h.svc.Schemas {
		for _, et := range s.EntityTypes {
			out = append(out, metaEntityListItem{
				Namespace: s.Namespace,
				Entity:    et.Name,
				EntitySet: sets[edm.NewFQN(s.Namespace, et.Name)],
			})
		}
	}
	c.JSON(http.StatusOK, out)
}

type metaField struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Key        bool   `json:"key,omitempty"`
	Nullable   bool   `json:"nullable"`
	Collection bool   `json:"collection,omitempty"`
	Enum       string `json:"enum,omitempty"`
	HostType   string `json:"hostType,omitempty"`
}

type metaNavigation struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	Collection bool   `json:"collection,omitempty"`
	Partner    string `json:"partner,omitempty"`
	Relation   string `json:"relation,omitempty"`
}

type metaEntity struct {
	Namespace  string           `json:"namespace"`
	Entity     string           `json:"entity"`
	HostType   string           `json:"hostType,omitempty"`
	Key        []string         `json:"key"`
	Fields     []metaField      `json:"fields"`
	Navigation []metaNavigation `json:"navigation,omitempty"`
}

// MetaEntity: GET /api/meta/:namespace/:entity
func (h *Handler) MetaEntity(c *gin.Context) {
	fqn, et, ok := h.lookupEntityType(c.Param("namespace"), c.Param("entity"))
	if !ok {
		h.fail(c, &metadata.NotFoundError{Kind: "entity type", Name: c.Param("namespace") + "." + c.Param("entity")})
		return
	}
	desc, _ := h.svc.Descriptor(fqn)

	out := metaEntity{
		Namespace: fqn.Namespace,
		Entity:    fqn.Name,
		Key:       et.KeyNames(),
		Fields:    make([]metaField, 0, len(et.Properties)),
	}
	if desc != nil {
		out.HostType = desc.Type.String()
	}
	for _, p := range et.Properties {
		f := metaField{
			Name:       p.Name,
			Type:       p.Type.String(),
			Key:        et.IsKey(p.Name),
			Nullable:   p.Nullable,
			Collection: p.Collection,
		}
		if desc != nil {
			if fd, ok := desc.Field(p.Name); ok {
				f.HostType = fd.Type.String()
				if fd.Enum != descriptor.EnumNone {
					f.Enum = fd.Enum.String()
				}
			}
		}
		out.Fields = append(out.Fields, f)
	}
	for _, n := range et.NavigationProperties {
		nav := metaNavigation{
			Name:       n.Name,
			Target:     n.Type.String(),
			Collection: n.Collection,
			Partner:    n.Partner,
		}
		if desc != nil {
			if fd, ok := desc.Field(n.Name); ok {
				nav.Relation = fd.Relation.Kind.String()
			}
		}
		out.Navigation = append(out.Navigation, nav)
	}
	c.JSON(http.StatusOK, out)
}

type metaEnum struct {
	Namespace string           `json:"namespace"`
	Name      string           `json:"name"`
	Members   []edm.EnumMember `json:"members"`
}

// MetaEnums: GET /api/enums
func (h *Handler) MetaEnums(c *gin.Context) {
	out := make([]metaEnum, 0)
	for _, s := range h.svc.Schemas {
		for _, e := range s.EnumTypes {
			out = append(out, metaEnum{Namespace: s.Namespace, Name: e.Name, Members: e.Members})
		}
	}
	c.JSON(http.StatusOK, out)
}
