package api

import (
	"strings"

	"odatagate/internal/edm"
)

// lookupEntitySet ищет entity set по имени: сначала точное совпадение,
// потом ЕДИНСТВЕННОЕ регистронезависимое.
func (h *Handler) lookupEntitySet(name string) (*edm.EntitySet, bool) {
	if name == "" {
		return nil, false
	}
	if set, _, ok := h.svc.Provider.FindEntitySet(name); ok {
		return set, true
	}
	var found *edm.EntitySet
	for _, s := range h.svc.Provider.Schemas() {
		if s.EntityContainer == nil {
			continue
		}
		for i := range s.EntityContainer.EntitySets {
			set := &s.EntityContainer.EntitySets[i]
			if !strings.EqualFold(set.Name, name) {
				continue
			}
			if found != nil { // неуникально
				return nil, false
			}
			found = set
		}
	}
	return found, found != nil
}

// lookupEntityType: то же для пары {namespace, entity} в /api/meta.
func (h *Handler) lookupEntityType(namespace, name string) (edm.FullQualifiedName, *edm.EntityType, bool) {
	nl := strings.ToLower(strings.TrimSpace(name))
	ml := strings.ToLower(strings.TrimSpace(namespace))
	if nl == "" {
		return edm.FullQualifiedName{}, nil, false
	}
	var (
		fqn   edm.FullQualifiedName
		found *edm.EntityType
	)
	for _, s := range h.svc.Provider.Schemas() {
		if ml != "" && strings.ToLower(s.Namespace) != ml && strings.ToLower(s.Alias) != ml {
			continue
		}
		for i := range s.EntityTypes {
			et := &s.EntityTypes[i]
			if et.Name == name && (s.Namespace == namespace || s.Alias == namespace) {
				return edm.NewFQN(s.Namespace, et.Name), et, true
			}
			if strings.ToLower(et.Name) != nl {
				continue
			}
			if found != nil {
				return edm.FullQualifiedName{}, nil, false
			}
			fqn, found = edm.NewFQN(s.Namespace, et.Name), et
		}
	}
	return fqn, found, found != nil
}
