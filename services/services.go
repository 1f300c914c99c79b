package services

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/apperr"
)

// Dependencies are the collaborators shared by the domain services
type Dependencies struct {
	DB            *gorm.DB
	Audit         AuditLog
	Notifier      Notifier
	NotifyTimeout time.Duration
	Logger        *zap.Logger
}

type base struct {
	db     *gorm.DB
	logger *zap.Logger
	dispatcher
	recorder
}

func newBase(deps Dependencies, name string) base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(name)
	timeout := deps.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return base{
		db:         deps.DB,
		logger:     logger,
		dispatcher: dispatcher{notifier: deps.Notifier, timeout: timeout, logger: logger},
		recorder:   recorder{audit: deps.Audit, logger: logger},
	}
}

// notFound converts gorm.ErrRecordNotFound into a NOT_FOUND error.
func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "%s %d not found", what, id)
	}
	return err
}

// likePattern builds a case-insensitive LIKE pattern for search.
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
