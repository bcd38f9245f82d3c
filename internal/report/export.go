package report

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteJSON encodes the table to w.
func WriteJSON(w io.Writer, t Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// XLSX builds a workbook with one sheet holding the table.
func XLSX(t Table) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("montante_acumulado")
	if err != nil {
		return nil, eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Percentual")
	for _, name := range t.Buckets {
		header.AddCell().SetString(name)
	}

	for _, p := range t.Points {
		row := sheet.AddRow()
		row.AddCell().SetInt(p.Percentil)
		for _, v := range p.Values {
			row.AddCell().SetFloat(v)
		}
	}
	return f, nil
}

// SaveXLSX writes the table as an .xlsx file at path.
func SaveXLSX(path string, t Table) error {
	f, err := XLSX(t)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
