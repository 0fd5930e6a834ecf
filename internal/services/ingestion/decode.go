package ingestion

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	// Файлы крупнее порога читаем построчно чанками, не материализуя
	// всю таблицу разом (как streaming-режим в пайплайнах коннекторов).
	streamThresholdBytes = 5 << 20
	chunkRows            = 1000
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no data rows")
)

func supportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}

func decodeFile(content []byte, filename string) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return decodeCSV(content)
	case ".xlsx", ".xls":
		return decodeExcel(content)
	}
	return Table{}, ErrUnsupportedFormat
}

// decodeCSV: сначала UTF-8, при невалидных байтах — GBK (легаси-кодировка
// файлов перевозчиков). BOM срезаем.
func decodeCSV(content []byte) (Table, error) {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})

	var r io.Reader = bytes.NewReader(content)
	if !utf8.Valid(content) {
		slog.Warn("csv is not valid utf-8, falling back to gbk")
		r = transform.NewReader(bytes.NewReader(content), simplifiedchinese.GBK.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Table{}, ErrEmptyFile
	}
	if err != nil {
		return Table{}, errors.Wrap(err, "read csv header")
	}

	if len(content) > streamThresholdBytes {
		return readCSVChunked(cr, header)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return Table{}, errors.Wrap(err, "read csv rows")
	}
	return Table{Header: header, Rows: rows}, nil
}

// readCSVChunked читает строки порциями фиксированного размера, чтобы
// ограничить пиковую память на больших файлах.
func readCSVChunked(cr *csv.Reader, header []string) (Table, error) {
	var rows [][]string
	chunk := make([][]string, 0, chunkRows)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, errors.Wrap(err, "read csv row")
		}
		chunk = append(chunk, rec)
		if len(chunk) == chunkRows {
			rows = append(rows, chunk...)
			slog.Debug("csv chunk decoded", "rows_so_far", len(rows))
			chunk = chunk[:0]
		}
	}
	rows = append(rows, chunk...)
	return Table{Header: header, Rows: rows}, nil
}

// decodeExcel читает только первый лист. Легаси .xls с тем же ридером:
// расширение пропускаем заранее, настоящий BIFF упадёт здесь как
// структурная ошибка декодирования.
func decodeExcel(content []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, errors.Wrap(err, "open spreadsheet")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, errors.Wrap(err, "read sheet rows")
	}
	if len(rows) == 0 {
		return Table{}, ErrEmptyFile
	}

	return Table{Header: rows[0], Rows: rows[1:]}, nil
}
