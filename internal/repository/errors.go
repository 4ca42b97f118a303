package repository

import (
	"errors"

	"learnhub_backend/internal/util"

	"gorm.io/gorm"
)

// translate 把 gorm 错误映射到领域错误分类
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return util.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return util.Wrap(util.KindConflict, err, what+" already exists")
	}
	return err
}
