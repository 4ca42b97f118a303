package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
)

// 单次补发扫描的最大数量
const pendingSweepBatch = 100

// CertificateCredential 存入对象存储的证书凭据
type CertificateCredential struct {
	Code        string    `json:"code"`
	UserID      uint      `json:"userId"`
	UserName    string    `json:"userName"`
	CourseID    uint      `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	IssuedAt    time.Time `json:"issuedAt"`
}

type CertificateService struct {
	CertRepo       *repository.CertificateRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	Progress       *ProgressService
	Storage        *StorageService
	Events         events.Publisher
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	progress *ProgressService,
	storage *StorageService,
	publisher events.Publisher,
) *CertificateService {
	return &CertificateService{
		CertRepo:       certRepo,
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		Progress:       progress,
		Storage:        storage,
		Events:         publisher,
	}
}

// Issue 每个 (user, course) 只发一次，已存在时直接返回
func (s *CertificateService) Issue(ctx context.Context, user UserContext, courseID uint) (*model.Certificate, error) {
	snap, err := s.Progress.Snapshot(ctx, user, courseID)
	if err != nil {
		return nil, err
	}
	if snap.Status != model.Completed {
		return nil, util.Validation("course %d is not completed", courseID)
	}

	existing, err := s.CertRepo.Find(ctx, user.UserID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}
	return s.issue(ctx, user.UserID, courseID)
}

func (s *CertificateService) List(ctx context.Context, user UserContext) ([]model.Certificate, error) {
	return s.CertRepo.ListByUser(ctx, user.UserID)
}

// IssuePending 为已完成但未发证的选课补发证书
func (s *CertificateService) IssuePending(ctx context.Context) (int, error) {
	enrollments, err := s.EnrollmentRepo.ListCompletedWithoutCertificate(ctx, pendingSweepBatch)
	if err != nil {
		return 0, err
	}

	issued := 0
	for _, e := range enrollments {
		if _, err := s.issue(ctx, e.UserID, e.CourseID); err != nil {
			logger.Log.Error("Failed to issue pending certificate",
				zap.Error(err),
				zap.Uint("userId", e.UserID),
				zap.Uint("courseId", e.CourseID))
			continue
		}
		issued++
	}
	return issued, nil
}

func (s *CertificateService) issue(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	course, err := s.CourseRepo.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	cred := CertificateCredential{
		Code:        model.GenerateUUID(),
		UserID:      user.ID,
		UserName:    user.Name,
		CourseID:    course.ID,
		CourseTitle: course.Title,
		IssuedAt:    time.Now(),
	}
	body, err := json.Marshal(cred)
	if err != nil {
		return nil, err
	}
	object := "certificates/" + cred.Code + ".json"
	url, err := s.Storage.Upload(ctx, object, bytes.NewReader(body), int64(len(body)), "application/json")
	if err != nil {
		return nil, err
	}

	cert := &model.Certificate{
		UserID:   userID,
		CourseID: courseID,
		Code:     cred.Code,
		URL:      url,
		IssuedAt: cred.IssuedAt,
	}
	if err := s.CertRepo.Create(ctx, cert); err != nil {
		if delErr := s.Storage.Delete(ctx, object); delErr != nil {
			logger.Log.Warn("Failed to remove orphan credential", zap.Error(delErr), zap.String("object", object))
		}
		if errors.Is(err, util.ErrConflict) {
			// 并发发证，以已落库的为准
			return s.CertRepo.Find(ctx, userID, courseID)
		}
		return nil, err
	}

	publishEvent(ctx, s.Events, events.CertificateIssued, map[string]interface{}{
		"certificateId": cert.ID,
		"code":          cert.Code,
		"courseId":      courseID,
		"userId":        userID,
	})
	return cert, nil
}
