package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/app/repositories"
	"github.com/luoxh/trainsys/internal/db"
	"github.com/luoxh/trainsys/internal/pkg/validation"
)

func TestSampleStudentsPassValidation(t *testing.T) {
	for _, s := range sampleStudents {
		assert.Contains(t, models.EducationOptions, s.Education, s.Name)
		assert.True(t, validation.ValidIDCard(s.IDCard), s.Name)
		assert.True(t, validation.ValidPhone(s.Phone), s.Name)
		assert.True(t, validation.ValidGender(s.Gender), s.Name)
	}
}

func TestCreateSampleData(t *testing.T) {
	database, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	ctx := context.Background()

	require.NoError(t, CreateSampleData(ctx, database))

	repo := repositories.NewStudentRepository(database)
	students, err := repo.List(ctx, repositories.ListFilter{})
	require.NoError(t, err)
	require.Len(t, students, len(sampleStudents))

	reviewed, err := repo.List(ctx, repositories.ListFilter{Status: string(models.StatusReviewed)})
	require.NoError(t, err)
	assert.Len(t, reviewed, 1)

	// A populated database is left untouched.
	require.NoError(t, CreateSampleData(ctx, database))
	total, err := repo.Count(ctx, repositories.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(sampleStudents)), total)
}
