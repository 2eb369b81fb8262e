// Package postgres wraps gorm with the PostgreSQL driver.
//
// Connections are opened with TranslateError enabled, monitored every ten
// seconds and transparently reopened after a failed ping. Repository code
// works on *gorm.DB through WithContext and Transaction and maps errors with
// TranslateError:
//
//	err := postgres.TranslateError(pg.WithContext(ctx).First(&f, id).Error)
//	if errors.Is(err, postgres.ErrRecordNotFound) {
//		// not visible yet
//	}
package postgres
