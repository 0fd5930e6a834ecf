package ingestion

import "strings"

// Table — прямоугольная таблица после декодирования файла.
// Header соответствует первой строке файла.
type Table struct {
	Header []string
	Rows   [][]string
}

// Канонические имена полей манифеста.
const (
	FieldManifestDate   = "manifest_date"
	FieldTrackingNumber = "tracking_number"
	FieldPackageNumber  = "package_number"
	FieldLength         = "length"
	FieldWidth          = "width"
	FieldHeight         = "height"
	FieldWeight         = "weight"
	FieldSpecialFee     = "special_fee"
	FieldGoodsCode      = "goods_code"
	FieldCustomerCode   = "customer_code"
	FieldTransportCode  = "transport_code"
)

// Заголовки шаблонов перевозчиков: файлы приходят как с китайскими,
// так и с английскими колонками. Сопоставление строгое, после trim.
var headerMapping = map[string]string{
	"理货日期": FieldManifestDate,
	"快递单号": FieldTrackingNumber,
	"集包单号": FieldPackageNumber,
	"长度":   FieldLength,
	"宽度":   FieldWidth,
	"高度":   FieldHeight,
	"重量":   FieldWeight,
	"特殊费用": FieldSpecialFee,
	"货物代码": FieldGoodsCode,
	"客户代码": FieldCustomerCode,
	"运输代码": FieldTransportCode,

	"manifest date":   FieldManifestDate,
	"tracking number": FieldTrackingNumber,
	"package number":  FieldPackageNumber,
	"length":          FieldLength,
	"width":           FieldWidth,
	"height":          FieldHeight,
	"weight":          FieldWeight,
	"special fee":     FieldSpecialFee,
	"goods code":      FieldGoodsCode,
	"customer code":   FieldCustomerCode,
	"transport code":  FieldTransportCode,
}

// normalizeColumns переименовывает известные колонки в канонические имена и
// молча отбрасывает неизвестные. Чистая, тотальная функция: отсутствие
// обязательных колонок — забота валидатора, не нормализатора.
func normalizeColumns(t Table) Table {
	keep := make([]int, 0, len(t.Header))
	header := make([]string, 0, len(t.Header))
	for i, h := range t.Header {
		canonical, ok := headerMapping[strings.TrimSpace(h)]
		if !ok {
			continue
		}
		keep = append(keep, i)
		header = append(header, canonical)
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(r) {
				row = append(row, r[i])
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows}
}

// rowMap собирает строку таблицы в словарь каноническое поле -> значение.
func rowMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(row) {
			m[h] = row[i]
		} else {
			m[h] = ""
		}
	}
	return m
}
