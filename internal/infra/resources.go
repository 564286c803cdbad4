package infra

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// loadKeyResource: PEM-материал либо прямо из ENV (Docker/K8s), либо из файла по пути.
// Пустой путь и пустой ENV: материала нет, это не ошибка.
func loadKeyResource(path string, envDataKey string) ([]byte, error) {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data), nil
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
