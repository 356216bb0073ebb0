// 包 schema 为 section / 集合条目的声明式字段表，seed 与 sync 共用。
//   - 每种类型是一张不可变的字段列表（名称、语义类型、别名、默认值）
//   - 新增类型或字段只改数据，不新增类型层级
//   - embedded_code 字段只存为页面正文中的代码块，从不作为行属性
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go-swan/internal/notion"
)

// ErrUnknownSectionType 表示注册表中没有该类型，调用方记录警告并跳过。
var ErrUnknownSectionType = errors.New("unknown section type")

// Kind 为字段的语义类型。
type Kind string

const (
	KindTitle        Kind = "title"
	KindText         Kind = "text"
	KindBoolean      Kind = "boolean"
	KindSingleChoice Kind = "single_choice"
	KindURL          Kind = "url"
	KindNumber       Kind = "number"
	KindFile         Kind = "file"
	KindEmbeddedCode Kind = "embedded_code"
)

// Remote 返回对应的远端属性类型；embedded_code 返回空串（存为正文代码块）。
func (k Kind) Remote() string {
	switch k {
	case KindTitle:
		return notion.TypeTitle
	case KindText:
		return notion.TypeRichText
	case KindBoolean:
		return notion.TypeCheckbox
	case KindSingleChoice:
		return notion.TypeSelect
	case KindURL:
		return notion.TypeURL
	case KindNumber:
		return notion.TypeNumber
	case KindFile:
		return notion.TypeFiles
	}
	return ""
}

type FieldDef struct {
	Name    string
	Kind    Kind
	Aliases []string
	Default any
	// Options 为 single_choice 建库时预置的选项
	Options []string
}

// Remote 为该字段的远端编码。
func (f FieldDef) Remote() string { return f.Kind.Remote() }

// names 依次返回规范名与全部别名。
func (f FieldDef) names() []string {
	return append([]string{f.Name}, f.Aliases...)
}

type SectionTypeDef struct {
	Type string
	// Section 为 false 时表示集合条目/配置行等非 section 类型
	Section bool
	// TitleField 为 section 标题取值字段，为空时使用数据库标题
	TitleField string
	Fields     []FieldDef
}

// Field 按规范名或别名查找字段。
func (d SectionTypeDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if slices.Contains(f.names(), name) {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldsOf 返回指定语义类型的字段（保持声明顺序）。
func (d SectionTypeDef) FieldsOf(kind Kind) []FieldDef {
	var out []FieldDef
	for _, f := range d.Fields {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// AssetPrefix 为该类型下载素材的文件名前缀，如 info_section -> info。
func (d SectionTypeDef) AssetPrefix() string {
	return strings.TrimSuffix(d.Type, "_section")
}

// DefinitionFor 返回类型定义；未注册时返回 ErrUnknownSectionType。
func DefinitionFor(typ string) (SectionTypeDef, error) {
	d, ok := registry[typ]
	if !ok {
		return SectionTypeDef{}, fmt.Errorf("%w: %q", ErrUnknownSectionType, typ)
	}
	return d, nil
}

// SectionTypes 返回全部 section 类型名（排序）。
func SectionTypes() []string {
	var out []string
	for k, d := range registry {
		if d.Section {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// PropertiesToCreate 返回建库所需的属性定义（不含 embedded_code）。
func PropertiesToCreate(typ string) (map[string]notion.PropertySchema, error) {
	d, err := DefinitionFor(typ)
	if err != nil {
		return nil, err
	}
	out := make(map[string]notion.PropertySchema, len(d.Fields))
	for _, f := range d.Fields {
		remote := f.Remote()
		if remote == "" {
			continue
		}
		ps := notion.PropertySchema{Type: remote}
		if f.Kind == KindSingleChoice && len(f.Options) > 0 {
			opts := make([]notion.SelectOption, len(f.Options))
			for i, o := range f.Options {
				opts[i] = notion.SelectOption{Name: o}
			}
			ps.Select = &notion.SelectSchema{Options: opts}
		}
		if f.Kind == KindNumber {
			ps.Number = &notion.NumberSchema{Format: "number"}
		}
		out[f.Name] = ps
	}
	return out, nil
}

// DecodeRow 按字段表读取一行属性：先规范名，再逐个别名，最后默认值。
// embedded_code 字段不在属性中，需调用方通过 CodeFromBlocks 从正文补齐。
func DecodeRow(typ string, props map[string]notion.PropertyValue) (Values, error) {
	d, err := DefinitionFor(typ)
	if err != nil {
		return nil, err
	}
	return d.Decode(props), nil
}

// Decode 见 DecodeRow。
func (d SectionTypeDef) Decode(props map[string]notion.PropertyValue) Values {
	out := make(Values, len(d.Fields))
	for _, f := range d.Fields {
		if f.Kind == KindEmbeddedCode {
			continue
		}
		v, ok := lookup(f, props)
		if !ok {
			v = zero(f)
		}
		out[f.Name] = v
	}
	return out
}

func lookup(f FieldDef, props map[string]notion.PropertyValue) (any, bool) {
	for _, name := range f.names() {
		pv, ok := props[name]
		if !ok {
			continue
		}
		if v, ok := decodeValue(f.Kind, pv); ok {
			return v, true
		}
	}
	return nil, false
}

// decodeValue 容忍远端类型漂移（例如 Tags 改为 multi_select），空值视为未命中。
func decodeValue(kind Kind, pv notion.PropertyValue) (any, bool) {
	switch kind {
	case KindBoolean:
		if pv.Type == notion.TypeCheckbox {
			return pv.Checkbox, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(textOf(pv)))
		return b, err == nil
	case KindNumber:
		if pv.Type == notion.TypeNumber {
			if pv.Number == nil {
				return nil, false
			}
			return *pv.Number, true
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(textOf(pv)), 64)
		return n, err == nil
	case KindFile:
		if pv.Type == notion.TypeFiles {
			for _, f := range pv.Files {
				if u := f.URL(); u != "" {
					return u, true
				}
			}
			return nil, false
		}
	}
	s := textOf(pv)
	return s, s != ""
}

func textOf(pv notion.PropertyValue) string {
	switch pv.Type {
	case notion.TypeTitle:
		return notion.PlainText(pv.Title)
	case notion.TypeRichText:
		return notion.PlainText(pv.RichText)
	case notion.TypeSelect:
		if pv.Select != nil {
			return pv.Select.Name
		}
	case notion.TypeMultiSelect:
		names := make([]string, len(pv.MultiSelect))
		for i, o := range pv.MultiSelect {
			names[i] = o.Name
		}
		return strings.Join(names, ", ")
	case notion.TypeURL:
		if pv.URL != nil {
			return *pv.URL
		}
	case notion.TypeNumber:
		if pv.Number != nil {
			return strconv.FormatFloat(*pv.Number, 'f', -1, 64)
		}
	case notion.TypeCheckbox:
		return strconv.FormatBool(pv.Checkbox)
	case notion.TypeFiles:
		for _, f := range pv.Files {
			if u := f.URL(); u != "" {
				return u
			}
		}
	case notion.TypeDate:
		if pv.Date != nil {
			return pv.Date.Start
		}
	}
	return ""
}

func zero(f FieldDef) any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Kind {
	case KindBoolean:
		return false
	case KindNumber:
		return nil
	}
	return ""
}

// CodeFromBlocks 拼接正文中全部代码块的文本，作为 embedded_code 字段的值。
func CodeFromBlocks(blocks []notion.Block) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "code" && b.Code != nil {
			parts = append(parts, notion.PlainText(b.Code.RichText))
		}
	}
	return strings.Join(parts, "\n")
}

// EncodeRow 将字段值编码为行属性与正文子块；embedded_code 只会出现在子块中。
// 值可以用规范名或别名给出；未声明的字段名返回错误。
func EncodeRow(typ string, values Values) (map[string]notion.PropertyValue, []notion.Block, error) {
	d, err := DefinitionFor(typ)
	if err != nil {
		return nil, nil, err
	}
	return d.Encode(values)
}

// Encode 见 EncodeRow。
func (d SectionTypeDef) Encode(values Values) (map[string]notion.PropertyValue, []notion.Block, error) {
	for name := range values {
		if _, ok := d.Field(name); !ok {
			return nil, nil, fmt.Errorf("%s: unknown field %q", d.Type, name)
		}
	}
	props := map[string]notion.PropertyValue{}
	var children []notion.Block
	for _, f := range d.Fields {
		raw, ok := valueFor(f, values)
		if f.Name == "section_type" && d.Section {
			raw, ok = d.Type, true
		}
		if !ok {
			if f.Default == nil {
				continue
			}
			raw = f.Default
		}
		switch f.Kind {
		case KindEmbeddedCode:
			if s := asString(raw); s != "" {
				children = append(children, notion.Code(s, "html"))
			}
		case KindTitle:
			props[f.Name] = notion.TitleValue(asString(raw))
		case KindText:
			props[f.Name] = notion.RichTextValue(asString(raw))
		case KindBoolean:
			b, err := asBool(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", d.Type, f.Name, err)
			}
			props[f.Name] = notion.CheckboxValue(b)
		case KindSingleChoice:
			if s := asString(raw); s != "" {
				props[f.Name] = notion.SelectValue(s)
			}
		case KindURL:
			props[f.Name] = notion.URLValue(asString(raw))
		case KindNumber:
			n, err := asFloat(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", d.Type, f.Name, err)
			}
			props[f.Name] = notion.NumberValue(n)
		case KindFile:
			if s := asString(raw); s != "" {
				props[f.Name] = notion.FilesValue(notion.ExternalFile(f.Name, s))
			} else {
				props[f.Name] = notion.FilesValue()
			}
		}
	}
	return props, children, nil
}

func valueFor(f FieldDef, values Values) (any, bool) {
	for _, name := range f.names() {
		if v, ok := values[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = asString(p)
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(t))
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
