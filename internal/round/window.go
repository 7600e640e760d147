package round

import (
	"fmt"
	"time"
)

// NextWindowStart devolve o próximo limite de janela ainda não iniciado.
// Ex: janela 5m, now=12:03:45 -> 12:05:00; now=12:05:00 -> 12:10:00.
// Janelas abaixo de 1ms são tratadas como 1ms; use ValidateWindow antes.
func NextWindowStart(now time.Time, window time.Duration) time.Time {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	aligned := now.UnixMilli() / ms * ms
	return time.UnixMilli(aligned + ms).UTC()
}

// TimeframeLabel converte a duração da janela no rótulo usado pelo oráculo ("5m", "1h")
func TimeframeLabel(window time.Duration) string {
	switch {
	case window%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", int64(window/(24*time.Hour)))
	case window%time.Hour == 0:
		return fmt.Sprintf("%dh", int64(window/time.Hour))
	default:
		return fmt.Sprintf("%dm", int64(window/time.Minute))
	}
}
