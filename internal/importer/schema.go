package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSchema is returned when a submission names a target schema that
// has no registered definition.
var ErrUnknownSchema = errors.New("unknown target schema")

// FieldKind selects the coercion rule applied by the validator.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindInteger FieldKind = "integer"
	KindDecimal FieldKind = "decimal"
	KindDate    FieldKind = "date"
	KindEmail   FieldKind = "email"
)

// FieldSpec describes one canonical field of a target schema.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Aliases are matched against normalized source headers, first match wins.
	Aliases []string
}

// TargetSchema is the pure-data description of one import target: its alias
// table, natural key, store table and batching behaviour. Adding a new import
// target means adding an entry to targetSchemas, nothing else.
type TargetSchema struct {
	Name       string
	Table      string
	NaturalKey string
	Fields     []FieldSpec
	// PositionalFields is the recovery mapping applied when a sheet exposes
	// only anonymous headers and the first column holds an integer.
	PositionalFields []string
	ChunkSize        int
}

// FieldByName returns the spec for a canonical field name.
func (s TargetSchema) FieldByName(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields lists the canonical names of required fields.
func (s TargetSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// ColumnNames lists every canonical field in declaration order.
func (s TargetSchema) ColumnNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

var targetSchemas = map[string]TargetSchema{
	"price_list": {
		Name:       "price_list",
		Table:      "price_list",
		NaturalKey: "item_code",
		ChunkSize:  500,
		Fields: []FieldSpec{
			{Name: "serial_number", Kind: KindText, Aliases: []string{"serial number", "serial no", "sn", "serial"}},
			{Name: "item_code", Kind: KindText, Required: true, Aliases: []string{"item code", "item", "sku", "code", "article"}},
			{Name: "product_group", Kind: KindText, Aliases: []string{"group", "product group", "grp"}},
			{Name: "family", Kind: KindText, Aliases: []string{"family", "product family", "fam"}},
			{Name: "material_description", Kind: KindText, Aliases: []string{"material description", "material", "description", "desc"}},
			{Name: "pattern_code", Kind: KindText, Aliases: []string{"pattern code", "pattern", "ptn"}},
			{Name: "normal_price", Kind: KindDecimal, Required: true, Aliases: []string{"normal price", "price", "list price", "harga", "harga normal"}},
			{Name: "special_price", Kind: KindDecimal, Aliases: []string{"special price", "promo price", "discount price", "harga khusus"}},
			{Name: "valid_from", Kind: KindDate, Aliases: []string{"valid from", "start date", "effective date"}},
		},
		PositionalFields: []string{
			"serial_number", "item_code", "product_group", "family",
			"material_description", "pattern_code", "normal_price", "special_price",
		},
	},
	"transfer_items": {
		Name:       "transfer_items",
		Table:      "transfer_items",
		NaturalKey: "item_code",
		ChunkSize:  1000,
		Fields: []FieldSpec{
			{Name: "item_code", Kind: KindText, Required: true, Aliases: []string{"item code", "item", "sku", "code"}},
			{Name: "description", Kind: KindText, Aliases: []string{"description", "item name", "name", "desc"}},
			{Name: "quantity", Kind: KindInteger, Required: true, Aliases: []string{"quantity", "qty", "amount", "jumlah"}},
			{Name: "from_store", Kind: KindText, Aliases: []string{"from store", "origin", "source store", "from"}},
			{Name: "to_store", Kind: KindText, Aliases: []string{"to store", "destination", "target store", "to"}},
			{Name: "transfer_date", Kind: KindDate, Aliases: []string{"transfer date", "date", "tanggal"}},
		},
		PositionalFields: []string{"item_code", "description", "quantity", "from_store", "to_store", "transfer_date"},
	},
	"staff": {
		Name:       "staff",
		Table:      "staff",
		NaturalKey: "staff_code",
		ChunkSize:  100,
		Fields: []FieldSpec{
			{Name: "staff_code", Kind: KindText, Required: true, Aliases: []string{"staff code", "employee id", "emp id", "nik", "id"}},
			{Name: "full_name", Kind: KindText, Required: true, Aliases: []string{"full name", "name", "employee name", "nama"}},
			{Name: "email", Kind: KindEmail, Aliases: []string{"email", "e mail", "email address"}},
			{Name: "role", Kind: KindText, Aliases: []string{"role", "position", "title", "jabatan"}},
			{Name: "store_code", Kind: KindText, Aliases: []string{"store", "store code", "branch", "outlet"}},
			{Name: "joined_at", Kind: KindDate, Aliases: []string{"joined", "join date", "start date", "hired"}},
		},
		PositionalFields: []string{"staff_code", "full_name", "email", "role", "store_code", "joined_at"},
	},
	"opening_stock": {
		Name:       "opening_stock",
		Table:      "opening_stock",
		NaturalKey: "item_code",
		ChunkSize:  1000,
		Fields: []FieldSpec{
			{Name: "item_code", Kind: KindText, Required: true, Aliases: []string{"item code", "item", "sku", "code"}},
			{Name: "store_code", Kind: KindText, Aliases: []string{"store", "store code", "branch", "outlet"}},
			{Name: "quantity", Kind: KindInteger, Required: true, Aliases: []string{"quantity", "qty", "stock", "on hand", "jumlah"}},
			{Name: "unit_cost", Kind: KindDecimal, Aliases: []string{"unit cost", "cost", "cost price", "hpp"}},
			{Name: "counted_at", Kind: KindDate, Aliases: []string{"counted", "count date", "stock date", "date"}},
		},
		PositionalFields: []string{"item_code", "store_code", "quantity", "unit_cost", "counted_at"},
	},
}

// SchemaByName resolves a target schema discriminator from a submission.
func SchemaByName(name string) (TargetSchema, error) {
	schema, ok := targetSchemas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TargetSchema{}, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return schema, nil
}

// SchemaNames lists the registered target schemas.
func SchemaNames() []string {
	names := make([]string, 0, len(targetSchemas))
	for name := range targetSchemas {
		names = append(names, name)
	}
	return names
}
