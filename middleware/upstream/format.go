// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
//    Padroniza a formatação do float (strconv.FormatFloat), evitando notação científica em
//    valores comuns e mantendo o código consistente

package upstream

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem depender de fmt, e sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatEpochCeil arredonda para cima: o cliente nunca volta antes da hora.
func formatEpochCeil(t time.Time) string {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return strconv.FormatInt(sec, 10)
}

// formatSeconds devolve segundos com precisão de milissegundo, arredondando para cima.
func formatSeconds(d time.Duration) string {
	ms := math.Ceil(float64(d) / float64(time.Millisecond))
	return formatFloat(ms / 1000)
}
