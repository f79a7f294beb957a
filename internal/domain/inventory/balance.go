package inventory

import (
	"fmt"
	"sort"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// SortEvents ordena por (OccurredAt, ID). El ID desempata eventos con el mismo timestamp.
func SortEvents(events []entity.StockEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return EventBefore(events[i], events[j])
	})
}

// EventBefore orden total de los eventos del ledger.
func EventBefore(a, b entity.StockEvent) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}
	return a.ID < b.ID
}

// Balance saldo = Σ IN − Σ OUT. Es un fold sobre el historial, no un contador mantenido aparte.
func Balance(events []entity.StockEvent) int {
	total := 0
	for _, e := range events {
		total += e.Signed()
	}
	return total
}

// RunningBalances devuelve el saldo después de cada evento (en el orden recibido)
// y falla si en algún punto el saldo queda negativo.
func RunningBalances(events []entity.StockEvent) ([]int, error) {
	out := make([]int, 0, len(events))
	running := 0
	for _, e := range events {
		running += e.Signed()
		if running < 0 {
			return out, fmt.Errorf("saldo negativo (%d) en evento %d de %s", running, e.ID, e.Key())
		}
		out = append(out, running)
	}
	return out, nil
}
