package tracking

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// ReferenceRanges are the normal ranges for the markers the client offers.
// Flags are computed against this table at submission time only.
var ReferenceRanges = map[string]Range{
	"Тестостерон общий":     {Min: 12, Max: 35, Unit: "нмоль/л"},
	"Тестостерон свободный": {Min: 243, Max: 827, Unit: "пмоль/л"},
	"Эстрадиол":             {Min: 40, Max: 161, Unit: "пмоль/л"},
	"ЛГ":                    {Min: 1.7, Max: 8.6, Unit: "мЕд/л"},
	"ФСГ":                   {Min: 1.5, Max: 12.4, Unit: "мЕд/л"},
	"АЛТ":                   {Min: 0, Max: 45, Unit: "Ед/л"},
	"АСТ":                   {Min: 0, Max: 35, Unit: "Ед/л"},
	"Билирубин общий":       {Min: 5, Max: 21, Unit: "мкмоль/л"},
	"Холестерин общий":      {Min: 0, Max: 5.2, Unit: "ммоль/л"},
	"ЛПНП":                  {Min: 0, Max: 3.3, Unit: "ммоль/л"},
	"ЛПВП":                  {Min: 1.0, Max: 2.2, Unit: "ммоль/л"},
	"Креатинин":             {Min: 62, Max: 115, Unit: "мкмоль/л"},
	"Мочевина":              {Min: 2.8, Max: 7.2, Unit: "ммоль/л"},
}

// AlertFlags returns "<marker> below normal" / "<marker> above normal" for
// every known marker whose value falls outside its range. Unknown markers and
// non-numeric values are skipped. The result is never nil.
func AlertFlags(results map[string]interface{}) []string {
	markers := make([]string, 0, len(results))
	for marker := range results {
		markers = append(markers, marker)
	}
	sort.Strings(markers)

	flags := []string{}
	for _, marker := range markers {
		ref, ok := ReferenceRanges[marker]
		if !ok {
			continue
		}
		value, ok := numericValue(results[marker])
		if !ok {
			continue
		}
		switch {
		case value < ref.Min:
			flags = append(flags, marker+" below normal")
		case value > ref.Max:
			flags = append(flags, marker+" above normal")
		}
	}
	return flags
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return leadingNumber(n)
	default:
		return 0, false
	}
}

var leadingNumberRe = regexp.MustCompile(`^[+-]?(\d+([.,]\d*)?|[.,]\d+)([eE][+-]?\d+)?`)

// leadingNumber reads the number at the start of s, so lab values typed with
// their unit ("40 нмоль/л") still count. A decimal comma is accepted.
func leadingNumber(s string) (float64, bool) {
	m := leadingNumberRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	return f, err == nil
}
