package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"odatagate/internal/dispatch"
	"odatagate/internal/edm"
	"odatagate/internal/metadata"
)

// resource: разобранный путь: сегменты + entity set первого сегмента (если есть).
type resource struct {
	segments   []dispatch.Segment
	entitySet  *edm.EntitySet
	entityType *edm.EntityType
}

// parsePath разбирает путь ресурса (без базового префикса) в типизированные сегменты.
func (h *Handler) parsePath(raw string) (*resource, error) {
	parts, err := splitPath(strings.Trim(raw, "/"))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, errors.Wrap(dispatch.ErrInvalidRequest, "empty resource path")
	}

	res := &resource{}
	var current *edm.EntityType // тип, на котором стоим; nil: не структурный
	for i, part := range parts {
		name, keyText, hasKeys, err := splitKeys(part)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			seg, et, set, err := h.firstSegment(name, keyText, hasKeys)
			if err != nil {
				return nil, err
			}
			res.segments = append(res.segments, seg)
			res.entitySet, res.entityType, current = set, et, et
			continue
		}
		seg, next, err := h.nextSegment(current, name)
		if err != nil {
			return nil, err
		}
		res.segments = append(res.segments, seg)
		current = next
	}
	return res, nil
}

func (h *Handler) firstSegment(name, keyText string, hasKeys bool) (dispatch.Segment, *edm.EntityType, *edm.EntitySet, error) {
	switch name {
	case "$root":
		return dispatch.RootSegment{}, nil, nil, nil
	case "$it":
		return dispatch.ItSegment{}, nil, nil, nil
	case "$count":
		return dispatch.CountSegment{}, nil, nil, nil
	case "$value":
		return dispatch.ValueSegment{}, nil, nil, nil
	case "$ref":
		return dispatch.RefSegment{}, nil, nil, nil
	}
	provider := h.svc.Provider

	if set, ok := h.lookupEntitySet(name); ok {
		et, err := provider.EntityType(set.Type)
		if err != nil {
			return nil, nil, nil, err
		}
		seg := dispatch.EntitySetSegment{EntitySet: set.Name, Type: set.Type}
		if hasKeys {
			keys, err := parseKeys(et, keyText)
			if err != nil {
				return nil, nil, nil, err
			}
			seg.Keys = keys
		}
		return seg, et, set, nil
	}

	for _, s := range provider.Schemas() {
		c := s.EntityContainer
		if c == nil {
			continue
		}
		if sg, ok := c.Singleton(name); ok {
			et, _ := provider.EntityType(sg.Type)
			return dispatch.SingletonSegment{Name: sg.Name}, et, nil, nil
		}
		if ai, ok := c.ActionImport(name); ok {
			return dispatch.ActionSegment{Action: ai.Action}, nil, nil, nil
		}
		if fi, ok := c.FunctionImport(name); ok {
			return dispatch.FunctionSegment{Function: fi.Function}, nil, nil, nil
		}
	}
	return nil, nil, nil, &metadata.NotFoundError{Kind: "entity set", Name: name}
}

func (h *Handler) nextSegment(current *edm.EntityType, name string) (dispatch.Segment, *edm.EntityType, error) {
	switch name {
	case "$count":
		return dispatch.CountSegment{}, nil, nil
	case "$value":
		return dispatch.ValueSegment{}, nil, nil
	case "$ref":
		return dispatch.RefSegment{}, nil, nil
	}
	provider := h.svc.Provider
	if current != nil {
		if nav, ok := current.NavigationProperty(name); ok {
			target, err := provider.EntityType(nav.Type)
			if err != nil {
				return nil, nil, err
			}
			return dispatch.NavigationSegment{Property: nav.Name}, target, nil
		}
		if p, ok := current.Property(name); ok {
			if _, err := provider.ComplexType(p.Type); err == nil {
				return dispatch.ComplexPropertySegment{Property: p.Name}, nil, nil
			}
			return dispatch.PrimitivePropertySegment{Property: p.Name}, nil, nil
		}
	}
	// связанные операции: ns.Name
	if strings.Contains(name, ".") {
		fqn := edm.ParseFQN(name)
		if actions, err := provider.Actions(fqn); err == nil && len(actions) > 0 {
			return dispatch.ActionSegment{Action: fqn}, nil, nil
		}
		if funcs, err := provider.Functions(fqn); err == nil && len(funcs) > 0 {
			return dispatch.FunctionSegment{Function: fqn}, nil, nil
		}
	}
	return nil, nil, &metadata.NotFoundError{Kind: "segment", Name: name}
}

// splitPath режет по '/' вне кавычек.
func splitPath(p string) ([]string, error) {
	if p == "" {
		return nil, nil
	}
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range p {
		switch {
		case r == '\'':
			quoted = !quoted
			cur.WriteRune(r)
		case r == '/' && !quoted:
			if cur.Len() == 0 {
				return nil, errors.Wrap(dispatch.ErrInvalidRequest, "empty path segment")
			}
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.Wrap(dispatch.ErrInvalidRequest, "unterminated string literal")
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}

// splitKeys: "People(5)" -> ("People", "5", true)
func splitKeys(seg string) (name, keys string, hasKeys bool, err error) {
	open := strings.IndexByte(seg, '(')
	if open < 0 {
		return seg, "", false, nil
	}
	if !strings.HasSuffix(seg, ")") || open == 0 {
		return "", "", false, errors.Wrapf(dispatch.ErrInvalidRequest, "malformed segment '%s'", seg)
	}
	return seg[:open], seg[open+1 : len(seg)-1], true, nil
}

// parseKeys разбирает "(5)", "('abc')", "(id=5,code='x')" с типами ключевых свойств.
func parseKeys(et *edm.EntityType, text string) (dispatch.Keys, error) {
	items, err := splitOutsideQuotes(text, ',')
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.Wrap(dispatch.ErrInvalidRequest, "empty key predicate")
	}
	keys := make(dispatch.Keys, 0, len(items))
	for _, item := range items {
		name, lit := "", strings.TrimSpace(item)
		if eq := indexOutsideQuotes(lit, '='); eq >= 0 {
			name, lit = strings.TrimSpace(lit[:eq]), strings.TrimSpace(lit[eq+1:])
		}
		prop := keyProperty(et, name, len(items))
		if prop == nil {
			// без типа: оставляем текст, проверит диспетчер
			keys = append(keys, dispatch.KeyPredicate{Name: name, Value: lit})
			continue
		}
		v, err := parseLiteral(lit, prop.Type)
		if err != nil {
			return nil, errors.Wrapf(dispatch.ErrInvalidRequest, "key '%s': %v", prop.Name, err)
		}
		keys = append(keys, dispatch.KeyPredicate{Name: name, Value: v})
	}
	return keys, nil
}

func keyProperty(et *edm.EntityType, name string, count int) *edm.Property {
	if et == nil {
		return nil
	}
	if name == "" {
		if count != 1 || len(et.Key) != 1 {
			return nil
		}
		name = et.Key[0].Name
	}
	if !et.IsKey(name) {
		return nil
	}
	p, _ := et.Property(name)
	return p
}

// parseLiteral: URL-литерал OData под примитивный тип.
func parseLiteral(lit string, t edm.FullQualifiedName) (any, error) {
	if lit == "null" {
		return nil, errors.New("null is not a valid key")
	}
	quoted := len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\''
	unquoted := lit
	if quoted {
		unquoted = strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
	}
	switch t {
	case edm.EdmString:
		if !quoted {
			return nil, errors.Errorf("string literal must be quoted: %s", lit)
		}
		return unquoted, nil
	case edm.EdmSByte, edm.EdmByte, edm.EdmInt16, edm.EdmInt32, edm.EdmInt64:
		if quoted {
			return nil, errors.Errorf("must be integer: %s", lit)
		}
		return parseIntLiteral(lit, t)
	case edm.EdmSingle, edm.EdmDouble, edm.EdmDecimal:
		if quoted {
			return nil, errors.Errorf("must be number: %s", lit)
		}
		f, err := strconv.ParseFloat(strings.TrimRight(lit, "mMdDfF"), 64)
		if err != nil {
			return nil, errors.Errorf("must be number: %s", lit)
		}
		return f, nil
	case edm.EdmBoolean:
		switch lit {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errors.Errorf("must be boolean: %s", lit)
	case edm.EdmGuid:
		return uuid.Parse(unquoted)
	case edm.EdmDateTimeOffset:
		return time.Parse(time.RFC3339Nano, unquoted)
	case edm.EdmDate:
		return time.Parse(dateLayout, unquoted)
	case edm.EdmDuration:
		s := strings.TrimSuffix(strings.TrimPrefix(unquoted, "duration'"), "'")
		return parseISODuration(s)
	}
	return nil, errors.Errorf("type %s cannot be used in a key", t)
}

func parseIntLiteral(lit string, t edm.FullQualifiedName) (int64, error) {
	if t == edm.EdmByte {
		n, err := strconv.ParseUint(lit, 10, 8)
		if err != nil {
			return 0, errors.Errorf("must be %s: %s", t.Name, lit)
		}
		return int64(n), nil
	}
	bits := map[edm.FullQualifiedName]int{edm.EdmSByte: 8, edm.EdmInt16: 16, edm.EdmInt32: 32, edm.EdmInt64: 64}[t]
	n, err := strconv.ParseInt(lit, 10, bits)
	if err != nil {
		return 0, errors.Errorf("must be %s: %s", t.Name, lit)
	}
	return n, nil
}

func splitOutsideQuotes(s string, sep rune) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
			cur.WriteRune(r)
		case r == sep && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.Wrap(dispatch.ErrInvalidRequest, "unterminated string literal")
	}
	return append(out, cur.String()), nil
}

func indexOutsideQuotes(s string, c byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			quoted = !quoted
		case s[i] == c && !quoted:
			return i
		}
	}
	return -1
}
