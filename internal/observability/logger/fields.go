package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hostelgate/internal/util"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }

// ─── Dominio (portería) ───

func ActorID(v string) zap.Field { return zap.String("actor_id", v) }
func GuardID(v string) zap.Field { return zap.String("guard_id", v) }
func WardenID(v string) zap.Field { return zap.String("warden_id", v) }
func StudentID(v string) zap.Field { return zap.String("student_id", v) }
func VisitID(v string) zap.Field { return zap.String("visit_id", v) }
func OTPID(v string) zap.Field { return zap.String("otp_id", v) }
func OverrideID(v string) zap.Field { return zap.String("override_id", v) }

// Phone loguea el teléfono enmascarado; nunca el número completo.
func Phone(v string) zap.Field { return zap.String("phone", util.MaskPhone(v)) }

// ─── Genéricos ───

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
