package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L общий логгер приложения. До вызова Init ничего не пишет.
var L = zap.NewNop()

var (
	infoFile  *os.File
	errorFile *os.File
)

// Init настраивает запись в info.log и error.log внутри logsPath.
// В development дополнительно пишет в stdout.
func Init(logsPath, env string) error {
	if err := os.MkdirAll(logsPath, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	infoPath := filepath.Join(logsPath, "info.log")
	var err error
	infoFile, err = os.OpenFile(infoPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create info.log: %w", err)
	}

	errorPath := filepath.Join(logsPath, "error.log")
	errorFile, err = os.OpenFile(errorPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		infoFile.Close()
		return fmt.Errorf("failed to create error.log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEnc := zapcore.NewJSONEncoder(encCfg)

	// В info.log попадает всё, в error.log только ошибки
	cores := []zapcore.Core{
		zapcore.NewCore(jsonEnc, zapcore.AddSync(infoFile), zapcore.InfoLevel),
		zapcore.NewCore(jsonEnc, zapcore.AddSync(errorFile), zapcore.ErrorLevel),
	}

	if env != "production" {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(devCfg), zapcore.Lock(os.Stdout), zapcore.DebugLevel))
	}

	L = zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	L.Info("logger initialized", zap.String("logs_path", logsPath), zap.String("env", env))
	return nil
}

// Cleanup сбрасывает буферы и закрывает файлы логов
func Cleanup() error {
	_ = L.Sync()

	var errInfo, errError error
	if infoFile != nil {
		errInfo = infoFile.Close()
	}
	if errorFile != nil {
		errError = errorFile.Close()
	}

	if errInfo != nil {
		return errInfo
	}
	return errError
}
