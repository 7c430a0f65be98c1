package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/pkg/logger"
)

const exportSheet = "学员信息"

// exportHeaders are the workbook columns, in order.
var exportHeaders = []string{
	"ID", "姓名", "性别", "文化程度", "毕业院校", "所学专业",
	"身份证号", "手机号", "单位名称", "单位地址",
	"作业类别", "操作项目", "项目代号",
	"状态", "创建时间",
}

// ExportService renders student listings as Excel workbooks.
type ExportService struct {
	repo *repositories.StudentRepository
}

// NewExportService creates a new export service instance
func NewExportService(repo *repositories.StudentRepository) *ExportService {
	return &ExportService{repo: repo}
}

// WriteExcel writes an xlsx workbook of the students matching the filter
// and returns the suggested download filename.
func (s *ExportService) WriteExcel(ctx context.Context, filter repositories.ListFilter, w io.Writer) (string, error) {
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), exportSheet)

	border := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return "", fmt.Errorf("creating header style: %w", err)
	}

	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return "", fmt.Errorf("creating cell style: %w", err)
	}

	widths := make([]int, len(exportHeaders))
	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(exportSheet, cell, header)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
		widths[col] = len([]rune(header))
	}

	for i, student := range students {
		values := exportRow(student)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(exportSheet, cell, value)
			f.SetCellStyle(exportSheet, cell, cell, cellStyle)
			if n := len([]rune(value)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	for col, width := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		adjusted := width + 2
		if adjusted > 50 {
			adjusted = 50
		}
		f.SetColWidth(exportSheet, name, name, float64(adjusted))
	}

	if err := f.Write(w); err != nil {
		return "", fmt.Errorf("writing workbook: %w", err)
	}

	logger.Info().Int("students", len(students)).Msg("Excel export generated")
	return fmt.Sprintf("学员信息_%s.xlsx", time.Now().Format("20060102_150405")), nil
}

func exportRow(s *models.Student) []string {
	return []string{
		strconv.FormatInt(s.ID, 10),
		s.Name,
		s.Gender,
		s.Education,
		s.School,
		s.Major,
		s.IDCard,
		s.Phone,
		s.Company,
		s.CompanyAddress,
		s.JobCategory,
		s.ExamProject,
		s.ProjectCode,
		s.Status.Label(),
		s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
