package taxlot

import (
	"time"

	"github.com/shopspring/decimal"
)

type lot struct {
	id    string
	token string
	qty   decimal.Decimal
	price decimal.Decimal
	date  time.Time
}

// lotQueue é uma fila FIFO de lotes de um único token. O head avança em vez
// de realocar o slice a cada lote consumido.
type lotQueue struct {
	lots []*lot
	head int
}

func (q *lotQueue) push(l *lot) {
	q.lots = append(q.lots, l)
}

func (q *lotQueue) front() *lot {
	if q.empty() {
		return nil
	}
	return q.lots[q.head]
}

func (q *lotQueue) pop() {
	if q.empty() {
		return
	}
	q.lots[q.head] = nil
	q.head++
	if q.head == len(q.lots) {
		q.lots = q.lots[:0]
		q.head = 0
	}
}

func (q *lotQueue) empty() bool {
	return q.head >= len(q.lots)
}

func (q *lotQueue) remaining() []*lot {
	return q.lots[q.head:]
}
