package infra

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// ResolveHostname определяет имя, под которым агент шлет события.
// Порядок: значение из конфига, имя ОС, затем "<unknown>".
// Имя сервера БД сюда не попадает никогда.
func ResolveHostname(ctx context.Context, configured string) string {
	if h := strings.TrimSpace(configured); h != "" {
		return h
	}
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	return domain.DefaultUnknownHostname
}
