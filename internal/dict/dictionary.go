// Package dict loads QuickFIX-style data dictionary documents and answers
// field, message-type, required-field and enumeration lookups across
// multiple coexisting FIX versions.
package dict

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dictionary is one specification version's knowledge base. It is built
// once during load and read-only afterwards.
type Dictionary struct {
	Version string

	// fieldNames maps tag number -> field name.
	fieldNames map[string]string

	// fieldNumbers is the reverse mapping, used to resolve message-level
	// field references that carry names instead of numbers.
	fieldNumbers map[string]string

	// messageTypes maps msg type code -> message name.
	messageTypes map[string]string

	// requiredFields maps msg type -> set of required tag numbers.
	requiredFields map[string]map[string]struct{}

	// enumValues maps tag number -> set of legal enum values. Global,
	// not message-type scoped.
	enumValues map[string]map[string]struct{}
}

// xmlFix mirrors the QuickFIX data dictionary document structure.
type xmlFix struct {
	XMLName     xml.Name     `xml:"fix"`
	Type        string       `xml:"type,attr"`
	Major       string       `xml:"major,attr"`
	Minor       string       `xml:"minor,attr"`
	ServicePack string       `xml:"servicepack,attr"`
	Fields      []xmlField   `xml:"fields>field"`
	Messages    []xmlMessage `xml:"messages>message"`
}

type xmlField struct {
	Number string     `xml:"number,attr"`
	Name   string     `xml:"name,attr"`
	Values []xmlValue `xml:"value"`
}

type xmlValue struct {
	Enum string `xml:"enum,attr"`
}

type xmlMessage struct {
	Name    string        `xml:"name,attr"`
	MsgType string        `xml:"msgtype,attr"`
	Fields  []xmlMsgField `xml:"field"`
}

type xmlMsgField struct {
	Name     string `xml:"name,attr"`
	Number   string `xml:"number,attr"`
	Required string `xml:"required,attr"`
}

// LoadDictionary parses one data dictionary document.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	var doc xmlFix
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}

	d := &Dictionary{
		Version:        documentVersion(&doc, path),
		fieldNames:     make(map[string]string),
		fieldNumbers:   make(map[string]string),
		messageTypes:   make(map[string]string),
		requiredFields: make(map[string]map[string]struct{}),
		enumValues:     make(map[string]map[string]struct{}),
	}

	for _, f := range doc.Fields {
		if f.Number == "" || f.Name == "" {
			continue
		}
		d.fieldNames[f.Number] = f.Name
		d.fieldNumbers[f.Name] = f.Number

		for _, v := range f.Values {
			if v.Enum == "" {
				continue
			}
			if d.enumValues[f.Number] == nil {
				d.enumValues[f.Number] = make(map[string]struct{})
			}
			d.enumValues[f.Number][v.Enum] = struct{}{}
		}
	}

	for _, m := range doc.Messages {
		if m.MsgType == "" || m.Name == "" {
			continue
		}
		d.messageTypes[m.MsgType] = m.Name

		required := make(map[string]struct{})
		for _, f := range m.Fields {
			if f.Required != "Y" {
				continue
			}
			// Message-level fields reference by number or by name
			// depending on the document flavor.
			tag := f.Number
			if tag == "" {
				tag = d.fieldNumbers[f.Name]
			}
			if tag != "" {
				required[tag] = struct{}{}
			}
		}
		if len(required) > 0 {
			d.requiredFields[m.MsgType] = required
		}
	}

	return d, nil
}

// documentVersion derives the version identifier from the document's fix
// element, falling back to the file name.
func documentVersion(doc *xmlFix, path string) string {
	if doc.Type != "" && doc.Major != "" && doc.Minor != "" {
		v := fmt.Sprintf("%s.%s.%s", doc.Type, doc.Major, doc.Minor)
		if doc.ServicePack != "" && doc.ServicePack != "0" {
			v += "SP" + doc.ServicePack
		}
		return v
	}
	if doc.Type != "" {
		return doc.Type
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// FieldName returns the name for a tag, or "" when the tag is unknown.
func (d *Dictionary) FieldName(tag string) (string, bool) {
	name, ok := d.fieldNames[tag]
	return name, ok
}

// MessageTypeName returns the name for a message type code.
func (d *Dictionary) MessageTypeName(msgType string) (string, bool) {
	name, ok := d.messageTypes[msgType]
	return name, ok
}

// IsFieldRequired reports whether a tag is required for a message type.
func (d *Dictionary) IsFieldRequired(tag, msgType string) bool {
	required, ok := d.requiredFields[msgType]
	if !ok {
		return false
	}
	_, ok = required[tag]
	return ok
}

// EnumValues returns the legal values for a tag, nil when the tag has no
// enumeration defined.
func (d *Dictionary) EnumValues(tag string) map[string]struct{} {
	return d.enumValues[tag]
}
