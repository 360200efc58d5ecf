package logger

import "log/slog"

type Backend string

const (
	BackendStd Backend = "std" // text handler, dev default
	BackendZap Backend = "zap" // sampled JSON via zap, stage/prod default
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend
	Debug   bool

	// zap sampling knobs
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}
