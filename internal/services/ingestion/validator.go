package ingestion

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BearBump/ManifestBox/internal/models"
	"github.com/BearBump/ManifestBox/internal/sanitize"
)

var requiredFields = []string{
	FieldTrackingNumber,
	FieldManifestDate,
	FieldTransportCode,
	FieldCustomerCode,
	FieldGoodsCode,
}

var manifestDateFormats = []string{
	"2006-01-02", // YYYY-MM-DD
	"2006/01/02", // YYYY/MM/DD
	"01/02/2006", // MM/DD/YYYY
	"02/01/2006", // DD/MM/YYYY
}

var trackingNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type fieldRule struct {
	maxLength  int
	pattern    *regexp.Regexp
	isDate     bool
	isNumeric  bool
	numericMax float64
}

// Порядок проверок фиксирован: ошибки строки должны идти в одном и том же
// порядке от запуска к запуску.
var ruleOrder = []string{
	FieldTrackingNumber,
	FieldManifestDate,
	FieldTransportCode,
	FieldCustomerCode,
	FieldGoodsCode,
	FieldPackageNumber,
	FieldLength,
	FieldWidth,
	FieldHeight,
	FieldWeight,
	FieldSpecialFee,
}

var fieldRules = map[string]fieldRule{
	FieldTrackingNumber: {maxLength: 50, pattern: trackingNumberPattern},
	FieldManifestDate:   {isDate: true},
	FieldTransportCode:  {maxLength: 20},
	FieldCustomerCode:   {maxLength: 20},
	FieldGoodsCode:      {maxLength: 20},
	FieldPackageNumber:  {maxLength: 50},
	FieldLength:         {isNumeric: true, numericMax: 999999.99},
	FieldWidth:          {isNumeric: true, numericMax: 999999.99},
	FieldHeight:         {isNumeric: true, numericMax: 999999.99},
	FieldWeight:         {isNumeric: true, numericMax: 999999.999},
	FieldSpecialFee:     {isNumeric: true, numericMax: 999999.99},
}

// Validator проверяет строки манифеста. Состояние дедупликации привязано к
// одной загрузке: между независимыми файлами его нужно сбрасывать.
type Validator struct {
	seenTrackingNumbers map[string]struct{}
}

func NewValidator() *Validator {
	return &Validator{seenTrackingNumbers: make(map[string]struct{})}
}

// ValidateColumns — структурная проверка: все пять обязательных колонок
// должны присутствовать, иначе загрузка прерывается целиком.
func (v *Validator) ValidateColumns(t Table) []string {
	present := make(map[string]struct{}, len(t.Header))
	for _, h := range t.Header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := present[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return []string{fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func (v *Validator) ResetDuplicates() {
	v.seenTrackingNumbers = make(map[string]struct{})
}

// ValidateRow собирает ВСЕ ошибки строки: обязательные поля, типы/форматы,
// санитайзер, дубликаты. Паника при проверке одной строки не должна
// ронять батч — превращаем её в ошибку строки.
func (v *Validator) ValidateRow(row map[string]string, rowNumber int) (res models.RowResult) {
	data := make(map[string]string, len(row))
	for f, raw := range row {
		data[f] = strings.TrimSpace(raw)
	}

	res = models.RowResult{RowNumber: rowNumber, Data: data}
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row validation failed: %v", r))
			res.Valid = false
		}
	}()

	var errs []string
	errs = append(errs, v.checkRequired(data)...)
	errs = append(errs, v.checkTypes(data)...)
	errs = append(errs, v.checkSecurity(data)...)
	errs = append(errs, v.checkDuplicates(data)...)

	res.Errors = errs
	res.Valid = len(errs) == 0
	return res
}

func (v *Validator) checkRequired(data map[string]string) []string {
	var errs []string
	for _, f := range requiredFields {
		if data[f] == "" {
			errs = append(errs, fmt.Sprintf("%s is required", f))
		}
	}
	return errs
}

func (v *Validator) checkTypes(data map[string]string) []string {
	var errs []string
	for _, f := range ruleOrder {
		value := data[f]
		if value == "" {
			continue
		}
		rule := fieldRules[f]

		switch {
		case rule.isDate:
			if _, err := ParseManifestDate(value); err != nil {
				errs = append(errs, fmt.Sprintf(
					"%s has invalid date format, supported: YYYY-MM-DD, YYYY/MM/DD, MM/DD/YYYY, DD/MM/YYYY", f))
			}
		case rule.isNumeric:
			errs = append(errs, checkNumeric(f, value, rule.numericMax)...)
		default:
			// Лимит в символах, не в байтах: коды бывают китайскими.
			if rule.maxLength > 0 && utf8.RuneCountInString(value) > rule.maxLength {
				errs = append(errs, fmt.Sprintf("%s exceeds %d characters", f, rule.maxLength))
			}
			if rule.pattern != nil && !rule.pattern.MatchString(value) {
				errs = append(errs, fmt.Sprintf("%s must contain only letters and digits", f))
			}
		}
	}
	return errs
}

// checkNumeric: ошибка парсинга обрывает остальные числовые проверки
// только для этого поля.
func checkNumeric(field, value string, max float64) []string {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return []string{fmt.Sprintf("%s must be a valid number", field)}
	}

	var errs []string
	if n < 0 {
		errs = append(errs, fmt.Sprintf("%s must not be negative", field))
	}
	if n > max {
		errs = append(errs, fmt.Sprintf("%s must not exceed %v", field, max))
	}
	return errs
}

func (v *Validator) checkSecurity(data map[string]string) []string {
	var errs []string
	for _, f := range []string{
		FieldTrackingNumber, FieldPackageNumber,
		FieldTransportCode, FieldCustomerCode, FieldGoodsCode,
	} {
		value, ok := data[f]
		if !ok || value == "" {
			continue
		}
		if _, reasons := sanitize.Clean(value); len(reasons) > 0 {
			for _, r := range reasons {
				errs = append(errs, fmt.Sprintf("%s: %s", f, r))
			}
		}
	}
	return errs
}

func (v *Validator) checkDuplicates(data map[string]string) []string {
	tn := data[FieldTrackingNumber]
	if tn == "" {
		return nil
	}
	if _, seen := v.seenTrackingNumbers[tn]; seen {
		return []string{fmt.Sprintf("tracking number %s duplicated", tn)}
	}
	v.seenTrackingNumbers[tn] = struct{}{}
	return nil
}

// ParseManifestDate пробует фиксированный набор форматов по порядку.
func ParseManifestDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range manifestDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", s)
}
