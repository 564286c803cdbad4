package health

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

// Evaluate переводит строку SHOW SLAVE STATUS в оценку здоровья.
// Чистая функция: строка должна быть уже проверена на количество полей.
func Evaluate(row domain.StatusRow) domain.Assessment {
	io := threadRunning(row, domain.FieldSlaveIORunning)
	sql := threadRunning(row, domain.FieldSlaveSQLRunning)

	a := domain.Assessment{
		Description: fmt.Sprintf("slave io: %s, slave sql: %s", threadState(io), threadState(sql)),
		Metric:      parseLag(row),
	}

	// Порядок важен: проверка IO идет второй и перекрывает WARNING от SQL
	if io && sql {
		a.State = domain.StateOK
	} else {
		if !sql {
			a.State = domain.StateWarning
		}
		if !io {
			a.State = domain.StateCritical
		}
	}
	return a
}

func threadRunning(row domain.StatusRow, idx int) bool {
	v, ok := row.Field(idx)
	return ok && strings.EqualFold(v, "yes")
}

func threadState(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// parseLag читает Seconds_Behind_Master как atoll: ведущее целое со знаком,
// мусор в хвосте игнорируется, строка без цифр дает 0. NULL дает отсутствие метрики.
func parseLag(row domain.StatusRow) *int64 {
	v, ok := row.Field(domain.FieldSecondsBehind)
	if !ok {
		return nil
	}

	v = strings.TrimLeft(v, " \t\n\r\v\f")
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	digits := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}

	var n int64
	if end > digits {
		// При переполнении ParseInt возвращает границу диапазона
		n, _ = strconv.ParseInt(v[:end], 10, 64)
	}
	return &n
}
