package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/models"
	"github.com/example/studentkit/internal/ums"
)

var ErrNoUMSGrades = errors.New("no graded courses found for the selected terms")

const umsProfileName = "UMS Import"

// UMSImportResult is the profile written by Import.
type UMSImportResult struct {
	Profile       *models.Profile `json:"profile"`
	ImportedTerms []string        `json:"importedTerms"`
	// SkippedCourses lists courses whose grade has no point value, as "CODE (grade)".
	SkippedCourses []string `json:"skippedCourses,omitempty"`
}

type umsImportService struct {
	client   UMSClient
	profiles db.ProfileRepository
	users    db.UserRepository
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewUMSImportService creates a new UMSImportService instance.
func NewUMSImportService(client UMSClient, pr db.ProfileRepository, ur db.UserRepository, logger *zap.Logger, m *metrics.Metrics) UMSImportService {
	return &umsImportService{
		client:   client,
		profiles: pr,
		users:    ur,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *umsImportService) Test(ctx context.Context, sessionCookie string) error {
	return s.client.Test(ctx, sessionCookie)
}

func (s *umsImportService) Import(ctx context.Context, userID string, req models.UMSImportRequest) (*UMSImportResult, error) {
	res, err := s.importProfile(ctx, userID, req)
	if err != nil {
		s.metrics.UMSImported("failure")
		s.logger.Warn("UMS import failed", zap.String("userID", userID), zap.Error(err))
		return nil, err
	}
	s.metrics.UMSImported("success")
	s.logger.Info("UMS import finished",
		zap.String("userID", userID),
		zap.String("profileID", res.Profile.ID),
		zap.Int("terms", len(res.ImportedTerms)),
		zap.Int("skipped", len(res.SkippedCourses)))
	return res, nil
}

func (s *umsImportService) importProfile(ctx context.Context, userID string, req models.UMSImportRequest) (*UMSImportResult, error) {
	var (
		info   *ums.BasicInfo
		terms  []ums.Term
		grades []ums.CourseGrade
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info, err = s.client.BasicInfo(gctx, req.SessionCookie)
		return err
	})
	g.Go(func() (err error) {
		terms, err = s.client.Terms(gctx, req.SessionCookie)
		return err
	})
	g.Go(func() (err error) {
		grades, err = s.client.Grades(gctx, req.SessionCookie)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch UMS data: %w", err)
	}

	semesters, termIDs, skipped := buildSemesters(terms, grades, req.TermIDs)
	if len(semesters) == 0 {
		return nil, ErrNoUMSGrades
	}

	studentInfo := &models.StudentInfo{
		Name:               info.Name,
		RegistrationNumber: info.RegistrationNumber,
		Program:            info.Program,
		Section:            info.Section,
		RollNumber:         info.RollNumber,
	}

	now := s.now()
	var saved *models.Profile
	err := s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		var p *models.Profile
		if req.ProfileID != "" {
			p = set.Get(req.ProfileID)
			if p == nil {
				return fmt.Errorf("%w: %s", ErrProfileNotFound, req.ProfileID)
			}
			p.Semesters = semesters
			touch(p, now)
		} else {
			name := strings.TrimSpace(req.ProfileName)
			if name == "" {
				name = umsProfileName
			}
			p = addProfileCopy(set, userID, name, semesters, now)
		}
		p.StudentInfo = studentInfo
		p.UMSVerified = true
		p.LastUMSSync = &now
		set.Put(p)
		saved = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.saveTermPreference(ctx, userID, termIDs)
	return &UMSImportResult{Profile: saved, ImportedTerms: termIDs, SkippedCourses: skipped}, nil
}

// buildSemesters turns UMS grades into one semester per term, in the portal's term
// order. Terms without a gradable course are left out.
func buildSemesters(terms []ums.Term, grades []ums.CourseGrade, only []string) ([]models.Semester, []string, []string) {
	wanted := map[string]bool{}
	for _, id := range only {
		wanted[id] = true
	}
	byTerm := map[string][]ums.CourseGrade{}
	for _, g := range grades {
		byTerm[g.TermID] = append(byTerm[g.TermID], g)
	}

	var (
		semesters []models.Semester
		termIDs   []string
		skipped   []string
	)
	for _, term := range terms {
		if len(wanted) > 0 && !wanted[term.ID] {
			continue
		}
		var subjects []models.Subject
		for _, g := range byTerm[term.ID] {
			point, ok := ums.GradePoint(g.Grade)
			if !ok || g.Credits < 0 {
				skipped = append(skipped, fmt.Sprintf("%s (%s)", g.CourseCode, g.Grade))
				continue
			}
			subjects = append(subjects, models.Subject{
				ID:          newID(),
				SubjectName: courseName(g),
				Grade:       point,
				Credit:      g.Credits,
			})
		}
		if len(subjects) == 0 {
			continue
		}
		name := strings.TrimSpace(term.Name)
		if name == "" {
			name = fmt.Sprintf("Semester %d", len(semesters)+1)
		}
		semesters = append(semesters, models.Semester{ID: newID(), Name: name, Subjects: subjects})
		termIDs = append(termIDs, term.ID)
	}
	return semesters, termIDs, skipped
}

func courseName(g ums.CourseGrade) string {
	code, name := strings.TrimSpace(g.CourseCode), strings.TrimSpace(g.CourseName)
	switch {
	case code == "":
		return name
	case name == "":
		return code
	default:
		return code + ": " + name
	}
}

func (s *umsImportService) saveTermPreference(ctx context.Context, userID string, termIDs []string) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Could not load user to store UMS terms", zap.String("userID", userID), zap.Error(err))
		return
	}
	user.Preferences.UMSTermIDs = termIDs
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		s.logger.Warn("Could not store UMS terms", zap.String("userID", userID), zap.Error(err))
	}
}
