// Package csdl renders a schema set as an OData v4 EDMX document.
package csdl

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"odatagate/internal/edm"
)

const (
	edmxNS  = "http://docs.oasis-open.org/odata/ns/edmx"
	edmNS   = "http://docs.oasis-open.org/odata/ns/edm"
	Version = "4.0"
)

// ContentType of the $metadata response.
const ContentType = "application/xml"

type edmxDoc struct {
	XMLName      xml.Name     `xml:"edmx:Edmx"`
	XMLNS        string       `xml:"xmlns:edmx,attr"`
	Version      string       `xml:"Version,attr"`
	DataServices dataServices `xml:"edmx:DataServices"`
}

type dataServices struct {
	Schemas []schema `xml:"Schema"`
}

type schema struct {
	XMLNS        string        `xml:"xmlns,attr"`
	Namespace    string        `xml:"Namespace,attr"`
	Alias        string        `xml:"Alias,attr,omitempty"`
	EnumTypes    []enumType    `xml:"EnumType"`
	ComplexTypes []complexType `xml:"ComplexType"`
	EntityTypes  []entityType  `xml:"EntityType"`
	Container    *container    `xml:"EntityContainer"`
}

type enumType struct {
	Name           string   `xml:"Name,attr"`
	UnderlyingType string   `xml:"UnderlyingType,attr,omitempty"`
	Members        []member `xml:"Member"`
}

type member struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:"Value,attr"`
}

type complexType struct {
	Name       string     `xml:"Name,attr"`
	Properties []property `xml:"Property"`
}

type entityType struct {
	Name       string        `xml:"Name,attr"`
	Key        *key          `xml:"Key"`
	Properties []property    `xml:"Property"`
	Navigation []navProperty `xml:"NavigationProperty"`
}

type key struct {
	Refs []propertyRef `xml:"PropertyRef"`
}

type propertyRef struct {
	Name string `xml:"Name,attr"`
}

type property struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type navProperty struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
	Partner  string `xml:"Partner,attr,omitempty"`
}

type container struct {
	Name       string      `xml:"Name,attr"`
	EntitySets []entitySet `xml:"EntitySet"`
	Singletons []singleton `xml:"Singleton"`
}

type entitySet struct {
	Name       string       `xml:"Name,attr"`
	EntityType string       `xml:"EntityType,attr"`
	Bindings   []navBinding `xml:"NavigationPropertyBinding"`
}

type singleton struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type navBinding struct {
	Path   string `xml:"Path,attr"`
	Target string `xml:"Target,attr"`
}

func typeName(t edm.FullQualifiedName, collection bool) string {
	if collection {
		return "Collection(" + t.String() + ")"
	}
	return t.String()
}

// Nullable is rendered only when false; true is the CSDL default.
func nullable(v bool) string {
	if v {
		return ""
	}
	return "false"
}

func properties(ps []edm.Property) []property {
	out := make([]property, 0, len(ps))
	for _, p := range ps {
		out = append(out, property{
			Name:     p.Name,
			Type:     typeName(p.Type, p.Collection),
			Nullable: nullable(p.Nullable),
		})
	}
	return out
}

func convert(s *edm.Schema) schema {
	out := schema{XMLNS: edmNS, Namespace: s.Namespace, Alias: s.Alias}
	for _, e := range s.EnumTypes {
		et := enumType{Name: e.Name}
		if !e.UnderlyingType.IsZero() {
			et.UnderlyingType = e.UnderlyingType.String()
		}
		for _, m := range e.Members {
			et.Members = append(et.Members, member{Name: m.Name, Value: strconv.FormatInt(m.Value, 10)})
		}
		out.EnumTypes = append(out.EnumTypes, et)
	}
	for _, c := range s.ComplexTypes {
		out.ComplexTypes = append(out.ComplexTypes, complexType{Name: c.Name, Properties: properties(c.Properties)})
	}
	for _, t := range s.EntityTypes {
		et := entityType{Name: t.Name, Properties: properties(t.Properties)}
		if len(t.Key) > 0 {
			et.Key = &key{}
			for _, k := range t.Key {
				et.Key.Refs = append(et.Key.Refs, propertyRef{Name: k.Name})
			}
		}
		for _, n := range t.NavigationProperties {
			np := navProperty{Name: n.Name, Type: typeName(n.Type, n.Collection), Partner: n.Partner}
			if !n.Collection {
				np.Nullable = nullable(n.Nullable)
			}
			et.Navigation = append(et.Navigation, np)
		}
		out.EntityTypes = append(out.EntityTypes, et)
	}
	if c := s.EntityContainer; c != nil {
		ct := &container{Name: c.Name}
		for _, es := range c.EntitySets {
			set := entitySet{Name: es.Name, EntityType: es.Type.String()}
			for _, b := range es.NavigationPropertyBindings {
				set.Bindings = append(set.Bindings, navBinding{Path: b.Path, Target: b.Target})
			}
			ct.EntitySets = append(ct.EntitySets, set)
		}
		for _, sg := range c.Singletons {
			ct.Singletons = append(ct.Singletons, singleton{Name: sg.Name, Type: sg.Type.String()})
		}
		out.Container = ct
	}
	return out
}

// Write renders the schemas, in order, as an indented EDMX document.
func Write(w io.Writer, schemas []*edm.Schema) error {
	doc := edmxDoc{XMLNS: edmxNS, Version: Version}
	for _, s := range schemas {
		if s == nil {
			return errors.New("nil schema")
		}
		doc.DataServices.Schemas = append(doc.DataServices.Schemas, convert(s))
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "write metadata")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return errors.Wrap(err, "write metadata")
	}
	return nil
}

func Marshal(schemas []*edm.Schema) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, schemas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
