package pg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"odatagate/internal/edm"
)

type OnDeletePolicy string

const (
	OnDeleteRestrict OnDeletePolicy = "RESTRICT"
	OnDeleteSetNull  OnDeletePolicy = "SET NULL"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// schema = namespace с '_' вместо точек: org.sample -> org_sample
func safeSchema(namespace string) string {
	return strings.ToLower(strings.ReplaceAll(namespace, ".", "_"))
}

// table = имя entity set'а (уже во множественном числе) с защитой keyword'ов
func safeTable(entitySet string) string {
	t := strings.ToLower(entitySet)
	if isReserved(t) {
		// помечаем «опасное» имя префиксом
		t = "e_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// TableName: квалифицированное имя таблицы для entity set'а.
func TableName(namespace, entitySet string) string {
	return sqlIdent(safeSchema(namespace)) + "." + sqlIdent(safeTable(entitySet))
}

func mapType(p edm.Property) (string, error) {
	if p.Collection {
		// коллекции примитивов: в jsonb
		return "jsonb", nil
	}
	switch p.Type {
	case edm.EdmString:
		return "text", nil
	case edm.EdmBoolean:
		return "boolean", nil
	case edm.EdmSByte, edm.EdmByte, edm.EdmInt16:
		return "smallint", nil
	case edm.EdmInt32:
		return "integer", nil
	case edm.EdmInt64:
		return "bigint", nil
	case edm.EdmSingle:
		return "real", nil
	case edm.EdmDouble:
		return "double precision", nil
	case edm.EdmDecimal:
		return "numeric(18,2)", nil
	case edm.EdmDate:
		return "date", nil
	case edm.EdmDateTimeOffset:
		return "timestamp with time zone", nil
	case edm.EdmTimeOfDay:
		return "time", nil
	case edm.EdmDuration:
		// наносекунды
		return "bigint", nil
	case edm.EdmBinary, edm.EdmStream:
		return "bytea", nil
	case edm.EdmGuid:
		return "uuid", nil
	default:
		return "", errors.Errorf("unknown type: %s", p.Type)
	}
}

type fkStmt struct {
	schema, table, name, col, refSchema, refTable, refCol string
	onDelete                                              OnDeletePolicy
}

// GenerateDDL возвращает карту ключ -> SQL DDL; ключи сортируются в порядке применения:
// 000: схемы и таблицы, 200: внешние ключи.
func GenerateDDL(schemas []*edm.Schema) (map[string]string, error) {
	out := map[string]string{}

	types := map[edm.FullQualifiedName]*edm.EntityType{}
	sets := map[edm.FullQualifiedName]string{}
	for _, s := range schemas {
		for i := range s.EntityTypes {
			types[edm.NewFQN(s.Namespace, s.EntityTypes[i].Name)] = &s.EntityTypes[i]
		}
		if s.EntityContainer != nil {
			for _, es := range s.EntityContainer.EntitySets {
				sets[es.Type] = es.Name
			}
		}
	}

	// --- Phase A: schemas + tables ---
	var phaseA strings.Builder
	var fks []fkStmt
	seenSchemas := map[string]struct{}{}

	for _, s := range schemas {
		if s.EntityContainer == nil || len(s.EntityContainer.EntitySets) == 0 {
			continue
		}
		mod := safeSchema(s.Namespace)
		if _, ok := seenSchemas[mod]; !ok {
			fmt.Fprintf(&phaseA, "create schema if not exists %s;\n", sqlIdent(mod))
			seenSchemas[mod] = struct{}{}
		}

		entitySets := append([]edm.EntitySet(nil), s.EntityContainer.EntitySets...)
		sort.Slice(entitySets, func(i, j int) bool { return entitySets[i].Name < entitySets[j].Name })

		for _, es := range entitySets {
			et, ok := types[es.Type]
			if !ok {
				return nil, errors.Errorf("%s: entity type %s not found", es.Name, es.Type)
			}
			tbl := safeTable(es.Name)

			var cols []string
			seen := map[string]struct{}{}
			for _, p := range et.Properties {
				nameLower := strings.ToLower(p.Name)
				if _, exists := seen[nameLower]; exists {
					return nil, errors.Errorf("%s: property %q duplicates a column", es.Name, p.Name)
				}
				seen[nameLower] = struct{}{}

				typ, err := mapType(p)
				if err != nil {
					return nil, errors.Wrapf(err, "%s.%s", es.Name, p.Name)
				}
				null := "null"
				if !p.Nullable || et.IsKey(p.Name) {
					null = "not null"
				}
				cols = append(cols, fmt.Sprintf("%s %s %s", sqlIdent(p.Name), typ, null))
			}

			// ссылка на одну запись: колонка <nav>_<key> + FK во второй фазе
			for _, nav := range et.NavigationProperties {
				if nav.Collection {
					continue
				}
				target, ok := types[nav.Type]
				if !ok || len(target.Key) != 1 {
					continue
				}
				keyProp, _ := target.Property(target.Key[0].Name)
				if keyProp == nil {
					continue
				}
				typ, err := mapType(*keyProp)
				if err != nil {
					return nil, errors.Wrapf(err, "%s.%s", es.Name, nav.Name)
				}
				col := nav.Name + "_" + keyProp.Name
				if _, exists := seen[strings.ToLower(col)]; exists {
					return nil, errors.Errorf("%s: reference column %q duplicates a column", es.Name, col)
				}
				seen[strings.ToLower(col)] = struct{}{}
				cols = append(cols, fmt.Sprintf("%s %s null", sqlIdent(col), typ))

				onDelete := OnDeleteRestrict
				if nav.Nullable {
					onDelete = OnDeleteSetNull
				}
				fks = append(fks, fkStmt{
					schema:    mod,
					table:     tbl,
					name:      strings.ToLower(es.Name + "_" + nav.Name + "_fk"),
					col:       col,
					refSchema: safeSchema(nav.Type.Namespace),
					refTable:  safeTable(sets[nav.Type]),
					refCol:    keyProp.Name,
					onDelete:  onDelete,
				})
			}

			pk := make([]string, 0, len(et.Key))
			for _, k := range et.Key {
				pk = append(pk, sqlIdent(k.Name))
			}
			cols = append(cols, fmt.Sprintf("primary key (%s)", strings.Join(pk, ", ")))

			fmt.Fprintf(&phaseA, "create table if not exists %s.%s (\n  %s\n);\n",
				sqlIdent(mod), sqlIdent(tbl), strings.Join(cols, ",\n  "))
		}
	}
	if phaseA.Len() > 0 {
		out["000_schemas_and_tables"] = phaseA.String()
	}

	// --- Phase B: foreign keys (после создания всех таблиц) ---
	var phaseB strings.Builder
	for _, fk := range fks {
		fmt.Fprintf(&phaseB,
			"alter table %s.%s add constraint %s foreign key (%s) references %s.%s(%s) on delete %s;\n",
			sqlIdent(fk.schema), sqlIdent(fk.table),
			fk.name,
			sqlIdent(fk.col),
			sqlIdent(fk.refSchema), sqlIdent(fk.refTable), sqlIdent(fk.refCol),
			fk.onDelete,
		)
	}
	if phaseB.Len() > 0 {
		out["200_foreign_keys"] = phaseB.String()
	}
	return out, nil
}

// Script склеивает DDL в порядке применения.
func Script(ddl map[string]string) string {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(ddl[k])
	}
	return sb.String()
}
