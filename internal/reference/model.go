package reference

import (
	"github.com/pkg/errors"

	"odatagate/internal/edm"
)

// EnumCatalog: один enum-справочник из YAML.
type EnumCatalog struct {
	Name string `yaml:"name"`
	// Byte, SByte, Int16, Int32 или Int64; пусто: Int32
	Underlying string        `yaml:"underlying,omitempty"`
	Items      []CatalogItem `yaml:"items"`
}

// CatalogItem становится членом enum с именем Code.
type CatalogItem struct {
	Code string `yaml:"code"`
	// 0: позиция в файле
	Order int `yaml:"order,omitempty"`
}

func (c EnumCatalog) underlyingType() (edm.FullQualifiedName, error) {
	if c.Underlying == "" {
		return edm.EdmInt32, nil
	}
	t := edm.NewFQN(edm.EdmNamespace, c.Underlying)
	if !edm.IsIntegral(t) {
		return edm.FullQualifiedName{}, errors.Errorf("enum '%s': underlying type '%s' is not integral", c.Name, c.Underlying)
	}
	return t, nil
}
