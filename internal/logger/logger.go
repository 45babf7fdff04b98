package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 结构化日志接口，键值对形式附加字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

// Options 日志初始化选项
type Options struct {
	Level      string   // debug / info / warn / error
	Writers    []string // console / file
	File       string   // file writer 输出路径
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type zlogger struct {
	zl zerolog.Logger
}

// New 创建 zerolog 实现的 Logger
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		case "file":
			file := opts.File
			if file == "" {
				file = "netmon.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    orDefault(opts.MaxSizeMB, 50),
				MaxBackups: orDefault(opts.MaxBackups, 3),
				MaxAge:     orDefault(opts.MaxAgeDays, 7),
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return &zlogger{zl: zl}
}

// NewNop 创建丢弃所有输出的 Logger，测试用
func NewNop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func (l *zlogger) Debug(msg string, kv ...any) { withFields(l.zl.Debug(), kv).Msg(msg) }
func (l *zlogger) Info(msg string, kv ...any)  { withFields(l.zl.Info(), kv).Msg(msg) }
func (l *zlogger) Warn(msg string, kv ...any)  { withFields(l.zl.Warn(), kv).Msg(msg) }
func (l *zlogger) Error(msg string, kv ...any) { withFields(l.zl.Error(), kv).Msg(msg) }

func (l *zlogger) Err(err error, msg string, kv ...any) {
	withFields(l.zl.Error().Err(err), kv).Msg(msg)
}

func withFields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}
