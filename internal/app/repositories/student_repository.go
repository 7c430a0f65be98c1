package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/dberrors"
)

// psql is the statement builder shared by all queries. SQLite uses
// question-mark placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// studentColumns lists every column in scan order.
var studentColumns = []string{
	"id", "name", "gender", "education", "school", "major",
	"id_card", "phone", "company", "company_address",
	"job_category", "exam_project", "project_code",
	"training_type", "status", "created_at",
	"photo_path", "diploma_path", "id_card_front_path", "id_card_back_path",
	"hukou_residence_path", "hukou_personal_path", "training_form_path",
	"submitter_openid",
}

// attachmentColumns are the columns holding relative file paths, used to
// resolve which record owns a served file.
var attachmentColumns = []string{
	"photo_path", "diploma_path", "id_card_front_path", "id_card_back_path",
	"hukou_residence_path", "hukou_personal_path", "training_form_path",
}

// ListFilter narrows a student listing. Zero values mean no filtering.
type ListFilter struct {
	// Status filters by review status; the virtual value "pending"
	// expands to unreviewed plus rejected.
	Status          string
	Search          string
	Company         string
	TrainingType    string
	SubmitterOpenid string

	// Limit of zero returns every match; Offset is ignored then.
	Limit  uint64
	Offset uint64
}

// StudentRepository handles database operations for student records
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a new student record and fills in its ID
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now()
	}

	query, args, err := psql.Insert("students").
		Columns(studentColumns[1:]...).
		Values(
			student.Name, student.Gender, student.Education, student.School, student.Major,
			student.IDCard, student.Phone, student.Company, student.CompanyAddress,
			student.JobCategory, student.ExamProject, student.ProjectCode,
			string(student.TrainingType), string(student.Status), student.CreatedAt,
			student.PhotoPath, student.DiplomaPath, student.IDCardFrontPath, student.IDCardBackPath,
			student.HukouResidencePath, student.HukouPersonalPath, student.TrainingFormPath,
			student.SubmitterOpenid,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building student insert: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dberrors.IsConstraintError(err) {
			return apperrors.NewValidationError("学员数据不符合约束", nil)
		}
		return apperrors.NewDatabaseError(fmt.Errorf("inserting student: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("reading inserted student id: %w", err))
	}
	student.ID = id
	return nil
}

// GetByID retrieves a student by ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	query, args, err := psql.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building student query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, apperrors.NewDatabaseError(fmt.Errorf("retrieving student %d: %w", id, err))
	}
	return student, nil
}

// GetByFilePath retrieves the student owning the given attachment path.
// Used by the static file handler to enforce per-submitter access.
func (r *StudentRepository) GetByFilePath(ctx context.Context, relPath string) (*models.Student, error) {
	or := make(squirrel.Or, 0, len(attachmentColumns))
	for _, col := range attachmentColumns {
		or = append(or, squirrel.Eq{col: relPath})
	}

	query, args, err := psql.Select(studentColumns...).
		From("students").
		Where(or).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building file owner query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, apperrors.NewDatabaseError(fmt.Errorf("resolving file owner: %w", err))
	}
	return student, nil
}

// List retrieves students matching the filter, newest first
func (r *StudentRepository) List(ctx context.Context, filter ListFilter) ([]*models.Student, error) {
	builder := applyListFilter(psql.Select(studentColumns...).
		From("students").
		OrderBy("created_at DESC", "id DESC"), filter)

	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit).Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building student list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("listing students: %w", err))
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError(fmt.Errorf("scanning student row: %w", err))
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return students, nil
}

// Count returns the number of students matching the filter, ignoring
// its Limit and Offset.
func (r *StudentRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	query, args, err := applyListFilter(psql.Select("COUNT(*)").From("students"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building student count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperrors.NewDatabaseError(fmt.Errorf("counting students: %w", err))
	}
	return total, nil
}

// applyListFilter adds the filter's WHERE clauses to a query.
func applyListFilter(builder squirrel.SelectBuilder, filter ListFilter) squirrel.SelectBuilder {
	switch filter.Status {
	case "":
	case string(models.StatusPending):
		builder = builder.Where(squirrel.Eq{"status": []string{
			string(models.StatusUnreviewed), string(models.StatusRejected),
		}})
	default:
		builder = builder.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		builder = builder.Where(squirrel.Or{
			squirrel.Like{"name": like},
			squirrel.Like{"id_card": like},
			squirrel.Like{"phone": like},
		})
	}

	if filter.Company != "" {
		builder = builder.Where(squirrel.Like{"company": "%" + filter.Company + "%"})
	}

	if filter.TrainingType != "" {
		builder = builder.Where(squirrel.Eq{"training_type": filter.TrainingType})
	}

	if filter.SubmitterOpenid != "" {
		builder = builder.Where(squirrel.Eq{"submitter_openid": filter.SubmitterOpenid})
	}

	return builder
}

// Update applies a partial update to the given student. The fields map
// uses column names as keys.
func (r *StudentRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	query, args, err := psql.Update("students").
		SetMap(fields).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building student update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dberrors.IsConstraintError(err) {
			return apperrors.NewValidationError("学员数据不符合约束", nil)
		}
		return apperrors.NewDatabaseError(fmt.Errorf("updating student %d: %w", id, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if affected == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// UpdateStatus transitions a student's review status
func (r *StudentRepository) UpdateStatus(ctx context.Context, id int64, status models.StudentStatus) error {
	return r.Update(ctx, id, map[string]any{"status": string(status)})
}

// Delete removes a student row
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("students").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building student delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("deleting student %d: %w", id, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if affected == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// Companies lists the distinct non-empty company names on file
func (r *StudentRepository) Companies(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("DISTINCT company").
		From("students").
		Where(squirrel.NotEq{"company": ""}).
		OrderBy("company").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building companies query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("listing companies: %w", err))
	}
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var company string
		if err := rows.Scan(&company); err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*models.Student, error) {
	var student models.Student
	var trainingType, status string

	err := row.Scan(
		&student.ID, &student.Name, &student.Gender, &student.Education,
		&student.School, &student.Major,
		&student.IDCard, &student.Phone, &student.Company, &student.CompanyAddress,
		&student.JobCategory, &student.ExamProject, &student.ProjectCode,
		&trainingType, &status, &student.CreatedAt,
		&student.PhotoPath, &student.DiplomaPath,
		&student.IDCardFrontPath, &student.IDCardBackPath,
		&student.HukouResidencePath, &student.HukouPersonalPath,
		&student.TrainingFormPath, &student.SubmitterOpenid,
	)
	if err != nil {
		return nil, err
	}

	student.TrainingType = models.TrainingType(trainingType)
	student.Status = models.StudentStatus(status)
	return &student, nil
}
