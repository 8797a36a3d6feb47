package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
)

// PersonExportHeader 人员导出表头
var PersonExportHeader = []string{
	"Person ID",
	"Name",
	"Identity No",
	"Phone",
	"Email",
	"Address",
	"Verified",
}

// GeneratePersonExport 生成人员导出 Excel 文件
// persons: 缓存快照，如果为空则只生成表头
func GeneratePersonExport(persons []*domain.Person) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Persons"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range PersonExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 设置列宽
	columnWidths := []float64{
		38, // Person ID
		20, // Name
		25, // Identity No
		18, // Phone
		25, // Email
		30, // Address
		10, // Verified
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据（快照是哈希表，按 ID 排序保证导出稳定）
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	for rowIdx, p := range persons {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		verified := "No"
		if p.Verified {
			verified = "Yes"
		}
		values := []any{
			p.ID,
			p.Name,
			p.IdentityNo,
			derefString(p.Phone),
			derefString(p.Email),
			derefString(p.Address),
			verified,
		}
		for col, value := range values {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportPersons GET /person/api/v1/persons/export
// 从缓存快照生成 Excel，不触发数据库查询
func (h *PersonHandler) ExportPersons(w http.ResponseWriter, r *http.Request) {
	if !callerAllowed(r, "exportPersons") {
		writeFail(w, 403, "permission denied")
		return
	}

	persons, err := h.cache.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("Failed to snapshot person cache for export", zap.Error(err))
		writeFail(w, 500, err.Error())
		return
	}

	data, err := GeneratePersonExport(persons)
	if err != nil {
		h.logger.Error("Failed to generate person export", zap.Error(err))
		writeFail(w, 500, err.Error())
		return
	}

	h.logger.Info("exportPersons", zap.Int("persons", len(persons)))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="persons.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
