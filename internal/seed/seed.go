package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/pkg/logger"
)

// sampleStudents are the demo enrollment records inserted into an empty
// development database. They cover both training tracks and every
// review status the admin console filters by.
var sampleStudents = []*models.Student{
	{
		Name:           "张伟",
		Gender:         "男",
		Education:      "本科或同等学历",
		School:         "华北理工大学",
		Major:          "电气工程及其自动化",
		IDCard:         "110101199001011234",
		Phone:          "13800138001",
		Company:        "华信电力工程有限公司",
		CompanyAddress: "北京市朝阳区建国路88号",
		JobCategory:    "电工作业",
		ExamProject:    "低压电工作业",
		ProjectCode:    "D1",
		TrainingType:   models.TrainingSpecialOperation,
		Status:         models.StatusUnreviewed,
	},
	{
		Name:           "李娜",
		Gender:         "女",
		Education:      "高中或同等学历",
		IDCard:         "110101199203054321",
		Phone:          "13800138002",
		Company:        "金盾消防设备有限公司",
		CompanyAddress: "北京市海淀区学院路30号",
		JobCategory:    "焊接与热切割作业",
		ExamProject:    "熔化焊接与热切割作业",
		TrainingType:   models.TrainingSpecialOperation,
		Status:         models.StatusReviewed,
	},
	{
		Name:           "王强",
		Gender:         "男",
		Education:      "初中",
		IDCard:         "110101198805210987",
		Phone:          "13800138003",
		Company:        "恒达特种设备服务有限公司",
		CompanyAddress: "北京市丰台区南四环西路128号",
		JobCategory:    "锅炉作业",
		ExamProject:    "工业锅炉司炉",
		TrainingType:   models.TrainingSpecialEquipment,
		Status:         models.StatusRejected,
	},
}

// CreateSampleData fills an empty database with demo enrollment records
// for local development. A database that already holds any student is
// left untouched.
func CreateSampleData(ctx context.Context, database *sql.DB) error {
	repo := repositories.NewStudentRepository(database)

	total, err := repo.Count(ctx, repositories.ListFilter{})
	if err != nil {
		return fmt.Errorf("checking for existing records: %w", err)
	}
	if total > 0 {
		logger.Info().Int64("students", total).Msg("Database already has records, skipping sample data")
		return nil
	}

	var finalErr error
	for _, s := range sampleStudents {
		record := *s
		if err := repo.Create(ctx, &record); err != nil {
			logger.Error().Err(err).Str("name", record.Name).Msg("Error seeding sample student")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		if record.Status != models.StatusUnreviewed {
			if err := repo.UpdateStatus(ctx, record.ID, record.Status); err != nil {
				finalErr = errors.Join(finalErr, err)
			}
		}
	}
	if finalErr != nil {
		return finalErr
	}

	logger.Info().Int("students", len(sampleStudents)).Msg("Sample data created")
	return nil
}
