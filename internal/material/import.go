package material

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/yuditriaji/zaiko-backend/internal/threshold"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"gorm.io/gorm"
)

type ImportHandler struct {
	db       *gorm.DB
	activity *activitylog.Logger
}

func NewImportHandler(db *gorm.DB, activity *activitylog.Logger) *ImportHandler {
	return &ImportHandler{db: db, activity: activity}
}

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	CreatedCount int      `json:"created_count"`
	UpdatedCount int      `json:"updated_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	Line         int
	Name         string
	Unit         string
	Price        *float64
	MinimumStock string
	Category     string
	Memo         string
}

// column aliases accepted in the header row
var importColumns = map[string][]string{
	"name":     {"name", "material", "material name", "材料名"},
	"unit":     {"unit", "単位"},
	"price":    {"price", "price per unit", "unit price", "単価"},
	"minimum":  {"minimum", "minimum stock", "min stock", "最低在庫"},
	"category": {"category", "カテゴリ"},
	"memo":     {"memo", "note", "notes", "メモ"},
}

// ImportExcel handles Excel/CSV upload for bulk material import
func (h *ImportHandler) ImportExcel(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)

	if strings.HasSuffix(fileName, ".xlsx") {
		rows, err = parseExcel(file)
	} else if strings.HasSuffix(fileName, ".csv") {
		rows, err = parseCSV(file)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Please upload .xlsx or .csv"})
		return
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return
	}

	result := ImportRows(c.Request.Context(), h.db, rows)
	h.activity.Record(c, "import", "material", nil, nil, gin.H{
		"file":    header.Filename,
		"created": result.CreatedCount,
		"updated": result.UpdatedCount,
		"failed":  result.FailedCount,
	})

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": fmt.Sprintf("Import completed: %d created, %d updated, %d failed", result.CreatedCount, result.UpdatedCount, result.FailedCount),
	})
}

// ImportRows creates or updates materials by name. Rows fail individually.
func ImportRows(ctx context.Context, db *gorm.DB, rows []ImportRow) ImportResult {
	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}
	db = db.WithContext(ctx)
	categories := make(map[string]uuid.UUID)

	fail := func(row ImportRow, format string, args ...interface{}) {
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: ", row.Line)+fmt.Sprintf(format, args...))
		result.FailedCount++
	}

	for _, row := range rows {
		if row.Name == "" {
			fail(row, "Material name is required")
			continue
		}
		minimum, err := threshold.ParseMinimum(row.MinimumStock)
		if err != nil {
			fail(row, "%v", err)
			continue
		}

		var categoryID *uuid.UUID
		if row.Category != "" {
			id, err := categoryByName(db, categories, row.Category)
			if err != nil {
				fail(row, "Failed to resolve category %s - %v", row.Category, err)
				continue
			}
			categoryID = &id
		}

		var existing database.Material
		found := db.Where("name = ?", row.Name).First(&existing).Error == nil

		if found {
			updates := map[string]interface{}{}
			if minimum != nil {
				updates["minimum_stock"] = *minimum
			}
			if row.Unit != "" {
				updates["unit"] = row.Unit
			}
			if row.Price != nil {
				updates["price_per_unit"] = *row.Price
			}
			if categoryID != nil {
				updates["category_id"] = *categoryID
			}
			if row.Memo != "" {
				updates["memo"] = row.Memo
			}

			if err := db.Model(&existing).Updates(updates).Error; err != nil {
				fail(row, "Failed to update %s - %v", row.Name, err)
				continue
			}
			result.UpdatedCount++
			continue
		}

		if row.Unit == "" {
			fail(row, "Unit is required for new material %s", row.Name)
			continue
		}
		m := database.Material{
			Name:         row.Name,
			Unit:         row.Unit,
			MinimumStock: minimum,
			CategoryID:   categoryID,
			Memo:         row.Memo,
		}
		if row.Price != nil {
			m.PricePerUnit = *row.Price
		}
		if err := db.Create(&m).Error; err != nil {
			fail(row, "Failed to create %s - %v", row.Name, err)
			continue
		}
		result.CreatedCount++
	}

	return result
}

func categoryByName(db *gorm.DB, cache map[string]uuid.UUID, name string) (uuid.UUID, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	var category database.MaterialCategory
	if err := db.Where(database.MaterialCategory{Name: name}).FirstOrCreate(&category).Error; err != nil {
		return uuid.Nil, err
	}
	cache[name] = category.ID
	return category.ID, nil
}

// parseExcel parses the first sheet of an .xlsx file
func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

// parseCSV parses .csv files
func parseCSV(file io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

// parseRecords maps a header row plus data rows onto ImportRow
func parseRecords(records [][]string) ([]ImportRow, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	colMap := make(map[string]int)
	for i, cell := range records[0] {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range importColumns {
			for _, alias := range aliases {
				if normalized == alias {
					colMap[field] = i
				}
			}
		}
	}
	if _, ok := colMap["name"]; !ok {
		return nil, fmt.Errorf("header row has no name column")
	}

	cell := func(row []string, field string) string {
		if idx, ok := colMap[field]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var result []ImportRow
	for i, row := range records[1:] {
		if len(row) == 0 {
			continue
		}

		importRow := ImportRow{
			Line:         i + 2,
			Name:         cell(row, "name"),
			Unit:         cell(row, "unit"),
			MinimumStock: cell(row, "minimum"),
			Category:     cell(row, "category"),
			Memo:         cell(row, "memo"),
		}
		if raw := cell(row, "price"); raw != "" {
			if val, err := strconv.ParseFloat(raw, 64); err == nil {
				importRow.Price = &val
			}
		}

		if importRow.Name != "" || importRow.Unit != "" {
			result = append(result, importRow)
		}
	}

	return result, nil
}

// DownloadTemplate generates a sample Excel template for import
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Name", "Unit", "Price", "Minimum Stock", "Category", "Memo"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	sampleData := [][]interface{}{
		{"Flour", "kg", 180, 20, "Dry goods", ""},
		{"Milk", "liter", 220, 12, "Dairy", "Keep refrigerated"},
		{"Paper cups", "pcs", 8, 500, "Packaging", ""},
	}

	for rowIdx, row := range sampleData {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	f.SetColWidth("Sheet1", "A", "A", 20)
	f.SetColWidth("Sheet1", "B", "D", 12)
	f.SetColWidth("Sheet1", "E", "F", 20)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=template_import_materials.xlsx")

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate template"})
		return
	}
}
