package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/repository"
)

// TeacherStore reads teacher accounts.
type TeacherStore interface {
	GetByID(ctx context.Context, id int) (*model.Teacher, error)
	GetByEmail(ctx context.Context, email string) (*model.Teacher, error)
}

const exportSheet = "Progress"

var exportHeader = []interface{}{
	"Username", "Name", "Grade", "Level", "Total XP", "Total Score", "Letters Learned",
	"Sessions", "Average Accuracy", "Streak Days", "Last Active", "Achievements",
}

// TeacherService handles teacher sign-in and class management.
type TeacherService struct {
	teachers TeacherStore
	students StudentDirectory
	auth     *AuthService
	log      zerolog.Logger
}

// NewTeacherService creates a new TeacherService.
func NewTeacherService(teachers TeacherStore, students StudentDirectory, auth *AuthService, log zerolog.Logger) *TeacherService {
	return &TeacherService{
		teachers: teachers,
		students: students,
		auth:     auth,
		log:      log.With().Str("component", "teacher_service").Logger(),
	}
}

// Authenticate checks a teacher's email and password.
func (s *TeacherService) Authenticate(ctx context.Context, email, password string) (*model.Teacher, error) {
	t, err := s.teachers.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrTeacherNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.auth.CheckPassword(t.PasswordHash, password); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id int) (*model.Teacher, error) {
	return s.teachers.GetByID(ctx, id)
}

// ListStudents returns the students enrolled with teacherID.
func (s *TeacherService) ListStudents(ctx context.Context, teacherID int) ([]model.StudentProfile, error) {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.StudentProfile{}
	}
	return students, nil
}

// RemoveStudent deletes one of the teacher's own students. Students of other
// teachers report ErrProfileNotFound.
func (s *TeacherService) RemoveStudent(ctx context.Context, teacherID int, username string) error {
	if err := s.students.DeleteForTeacher(ctx, username, teacherID); err != nil {
		return err
	}
	s.log.Info().Int("teacher_id", teacherID).Str("username", username).Msg("Student removed")
	return nil
}

// ExportProgress writes the class progress as an xlsx workbook to w.
func (s *TeacherService) ExportProgress(ctx context.Context, teacherID int, w io.Writer) error {
	students, err := s.ListStudents(ctx, teacherID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, p := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			p.Username,
			p.DisplayName,
			p.Grade,
			p.Level,
			p.TotalXP,
			p.TotalScore,
			p.LettersLearned,
			p.PracticeSessions,
			p.AverageAccuracy,
			p.StreakDays,
			p.LastActive.Format("2006-01-02 15:04"),
			strings.Join(p.Achievements, ", "),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "L", 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
