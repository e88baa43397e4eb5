package logx

import (
	"errors"
	"log"
	"syscall"

	"go.uber.org/zap"
)

var Logger *zap.SugaredLogger

// NewLogger installs the package-level development logger. Tests and
// local servers use this console encoder.
func NewLogger() {
	install(zap.NewDevelopment())
}

// NewProductionLogger installs a JSON logger for deployed game
// servers.
func NewProductionLogger() {
	install(zap.NewProduction())
}

func install(logger *zap.Logger, err error) {
	if err != nil {
		log.Fatalf(`level=error msg="%s" desc="%s"`, err.Error(), "could not build the partyhub logger")
	}

	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if errors.Is(err, syscall.EINVAL) {
			// https://github.com/uber-go/zap/issues/328
			return
		}
		if err != nil {
			log.Printf(`level=error msg="%s" desc="%s"`, err.Error(), "could not flush the partyhub logger")
		}
	}(logger)

	Logger = logger.Sugar()
}
