package log

import "log/slog"

func SessionID[T ~string](id T) slog.Attr {
	return slog.String("session_id", string(id))
}

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func StepID[T ~string](id T) slog.Attr {
	return slog.String("step_id", string(id))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Participant[T ~string](id T) slog.Attr {
	return slog.String("participant", string(id))
}

func Channel(id string) slog.Attr {
	return slog.String("channel_id", id)
}

func Key(key string) slog.Attr {
	return slog.String("key", key)
}

func Attempts(n int) slog.Attr {
	return slog.Int("attempts", n)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
