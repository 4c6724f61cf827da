// Package logger настраивает logrus для сервиса
package logger

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New создает логгер с уровнем level и форматом text или json.
// В json поля называются как в агрегаторе логов (ts, level, msg).
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stdout, level, format)
}

// NewWithOutput - то же, что New, но пишет в out
func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "неизвестный уровень логирования %q", level)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("неизвестный формат логов %q", format)
	}
	return log, nil
}

// Component возвращает запись с полем component
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
