package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// Candidate header names per field, tried in order.  The sheet behind the
// feed has been edited by hand in both English and Arabic, so the first
// candidate present with a non-empty value wins.
var (
	unitNumberKeys     = []string{"unitNumber", "unit_number", "Unit Number", "unit", "Unit", "رقم الوحدة", "الوحدة", "رقم الشقة"}
	buyerNameKeys      = []string{"buyerName", "buyer_name", "Buyer", "Buyer Name", "customer", "اسم العميل", "اسم المشتري", "العميل"}
	salesPersonKeys    = []string{"salesPerson", "sales_person", "Sales Person", "salesEmployee", "seller", "الموظف", "موظف المبيعات", "البائع"}
	saleDateKeys       = []string{"saleDate", "sale_date", "Sale Date", "date", "تاريخ البيع", "التاريخ"}
	accountantNameKeys = []string{"accountantName", "accountant_name", "Accountant", "accountant", "المحاسب", "اسم المحاسب"}
	areaKeys           = []string{"area", "Area", "area_m2", "المساحة", "مساحة"}
	salePriceKeys      = []string{"salePrice", "sale_price", "Sale Price", "price", "Price", "سعر البيع", "السعر", "المبلغ"}
	categoryKeys       = []string{"category", "Category", "type", "التصنيف", "النوع", "الفئة"}
)

var errUnexpectedShape = errors.New("unexpected feed payload shape")

// decodeRows accepts a bare array of objects or an object wrapping one
// under "rows" or "data".
func decodeRows(body []byte) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errUnexpectedShape
	}
	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}
	if body[0] == '[' {
		var rows []map[string]any
		if err := dec(body, &rows); err != nil {
			return nil, fmt.Errorf("decode feed array: %w", err)
		}
		return rows, nil
	}
	var wrapper map[string]json.RawMessage
	if err := dec(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode feed object: %w", err)
	}
	for _, k := range []string{"rows", "data"} {
		raw, ok := wrapper[k]
		if !ok {
			continue
		}
		var rows []map[string]any
		if err := dec(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode feed %s: %w", k, err)
		}
		return rows, nil
	}
	return nil, errUnexpectedShape
}

// ParseRows turns raw feed rows into SoldUnitInfo keyed by normalized
// unit number.  Rows without a unit number are skipped.  When the sheet
// lists a unit twice the later row wins.
func ParseRows(rows []map[string]any) map[string]model.SoldUnitInfo {
	out := make(map[string]model.SoldUnitInfo, len(rows))
	for _, row := range rows {
		r := normalizeRow(row)
		key := UnitKey(r.str(unitNumberKeys))
		if key == "" {
			continue
		}
		out[key] = model.SoldUnitInfo{
			UnitNumber:     key,
			BuyerName:      r.str(buyerNameKeys),
			SalesPerson:    r.str(salesPersonKeys),
			SaleDate:       r.str(saleDateKeys),
			AccountantName: r.str(accountantNameKeys),
			Area:           ParseAmount(r.str(areaKeys)),
			SalePrice:      ParseAmount(r.str(salePriceKeys)),
			Category:       r.str(categoryKeys),
		}
	}
	return out
}

// UnitKey normalizes a unit number cell: digits in any script become an
// integer string ("012" and "١٢" both give "12"); anything else is kept
// trimmed as-is.
func UnitKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ascii := toASCIIDigits(raw)
	if n, err := strconv.Atoi(ascii); err == nil {
		return strconv.Itoa(n)
	}
	if d, err := decimal.NewFromString(ascii); err == nil && d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return raw
}

type row map[string]string

// normalizeRow stringifies every cell and indexes it by a case- and
// whitespace-insensitive header.
func normalizeRow(in map[string]any) row {
	r := make(row, len(in))
	for k, v := range in {
		r[headerKey(k)] = cellString(v)
	}
	return r
}

func (r row) str(keys []string) string {
	for _, k := range keys {
		if v := r[headerKey(k)]; v != "" {
			return v
		}
	}
	return ""
}

func headerKey(k string) string {
	return strings.ToLower(strings.Join(strings.Fields(k), " "))
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
