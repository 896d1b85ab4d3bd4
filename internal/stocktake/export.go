package stocktake

import (
	"github.com/xuri/excelize/v2"
)

const matrixSheet = "Stocktake"

// ExportMatrix renders the monthly matrix as a workbook: one row per material, one column per store
func ExportMatrix(m *Matrix) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		f.Close()
		return nil, err
	}

	headers := []interface{}{"Material", "Unit"}
	for _, s := range m.Stores {
		headers = append(headers, s.Name)
	}
	headers = append(headers, "Total")
	if err := f.SetSheetRow(matrixSheet, "A1", &headers); err != nil {
		f.Close()
		return nil, err
	}

	for i, row := range m.Rows {
		values := []interface{}{row.Name, row.Unit}
		for _, q := range row.Counts {
			if q == nil {
				values = append(values, "")
				continue
			}
			values = append(values, *q)
		}
		values = append(values, row.Total)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(matrixSheet, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(matrixSheet, "A", "A", 24)
	f.SetColWidth(matrixSheet, "B", lastCol, 12)
	f.SetPanes(matrixSheet, &excelize.Panes{Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight"})

	return f, nil
}
