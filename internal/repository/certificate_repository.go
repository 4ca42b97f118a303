package repository

import (
	"context"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Find(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	if err != nil {
		return nil, translate(err, "certificate")
	}
	return &cert, nil
}

func (r *CertificateRepository) ListByUser(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	return translate(r.DB.WithContext(ctx).Create(cert).Error, "certificate")
}
