package infra

import (
	"os"
	"strconv"
	"strings"
)

// EnvMaxConcurrent controla a capacidade do gate global.
const EnvMaxConcurrent = "OPENAI_MAX_CONCURRENT_REQUESTS"

// CapacityFromEnv lê EnvMaxConcurrent. Ausente, não numérico ou <= 0 vira
// DefaultCapacity (nunca falha na subida do processo).
func CapacityFromEnv() int {
	return capacityFrom(os.Getenv(EnvMaxConcurrent))
}

func capacityFrom(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultCapacity
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultCapacity
	}
	return n
}
