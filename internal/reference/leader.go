package reference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"odatagate/internal/edm"
)

// LoadEnumCatalog читает все enum-справочники из папки (*.yaml, *.yml).
func LoadEnumCatalog(dir string) (map[string]EnumCatalog, error) {
	result := make(map[string]EnumCatalog)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read enum dir %s", dir)
	}
	for _, file := range entries {
		ext := filepath.Ext(file.Name())
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		var catalog EnumCatalog
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		// Имя справочника: из catalog.Name или из имени файла
		if catalog.Name == "" {
			catalog.Name = strings.TrimSuffix(file.Name(), ext)
		}
		if _, dup := result[catalog.Name]; dup {
			return nil, errors.Errorf("%s: enum '%s' declared twice", path, catalog.Name)
		}
		result[catalog.Name] = catalog
	}
	return result, nil
}

// EnumType переводит справочник в edm.EnumType (по умолчанию Edm.Int32).
// Члены упорядочены по order; значение: order, а без него позиция в файле.
func (d EnumCatalog) EnumType() (edm.EnumType, error) {
	if !isIdentifier(d.Name) {
		return edm.EnumType{}, errors.Errorf("enum name '%s' is not an identifier", d.Name)
	}
	underlying, err := d.underlyingType()
	if err != nil {
		return edm.EnumType{}, err
	}
	type member struct {
		code  string
		value int64
	}
	members := make([]member, 0, len(d.Items))
	seen := map[string]struct{}{}
	for i, it := range d.Items {
		if !isIdentifier(it.Code) {
			return edm.EnumType{}, errors.Errorf("enum '%s': item code '%s' is not an identifier", d.Name, it.Code)
		}
		if _, dup := seen[it.Code]; dup {
			return edm.EnumType{}, errors.Errorf("enum '%s': duplicate code '%s'", d.Name, it.Code)
		}
		seen[it.Code] = struct{}{}
		v := int64(i)
		if it.Order != 0 {
			v = int64(it.Order)
		}
		members = append(members, member{code: it.Code, value: v})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].value < members[j].value })

	out := edm.EnumType{Name: d.Name, UnderlyingType: underlying}
	for _, m := range members {
		out.Members = append(out.Members, edm.EnumMember{Name: m.code, Value: m.value})
	}
	return out, nil
}

// LoadEnumTypes: LoadEnumCatalog + EnumType, по имени.
func LoadEnumTypes(dir string) ([]edm.EnumType, error) {
	catalog, err := LoadEnumCatalog(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]edm.EnumType, 0, len(names))
	for _, name := range names {
		et, err := catalog[name].EnumType()
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
