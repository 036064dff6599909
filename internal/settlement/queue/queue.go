package queue

import (
	"iter"
	"sort"
)

// Queue é a fila FIFO de apostas com pagamento pendente. A ordem é dada
// exclusivamente pela sequência de entrada; nunca há repriorização por valor.
//
// Internamente usa um slice append-only com offset de cabeça: remoções na
// frente avançam o offset, remoções fora da frente (raras) viram tombstones.
// Posição é O(log n), enqueue e remoção da frente O(1) amortizado.
//
// Não é thread-safe; o motor de liquidação serializa todo acesso.
type Queue struct {
	ids   []int64       // slots em ordem de entrada, inclui tombstones
	head  int           // primeiro slot vivo
	index map[int64]int // betID → slot
	dead  []int         // slots tombstonados após head, ordenados
}

func New() *Queue {
	return &Queue{index: make(map[int64]int)}
}

// Enqueue adiciona a aposta ao fim da fila. Idempotente: re-enfileirar um
// id já presente é no-op.
func (q *Queue) Enqueue(betID int64) {
	if _, ok := q.index[betID]; ok {
		return
	}
	q.index[betID] = len(q.ids)
	q.ids = append(q.ids, betID)
}

// Remove tira a aposta da fila, se presente. Seguro chamar redundantemente.
func (q *Queue) Remove(betID int64) {
	slot, ok := q.index[betID]
	if !ok {
		return
	}
	delete(q.index, betID)

	if slot == q.head {
		q.head++
		q.skipDead()
	} else {
		i := sort.SearchInts(q.dead, slot)
		q.dead = append(q.dead, 0)
		copy(q.dead[i+1:], q.dead[i:])
		q.dead[i] = slot
	}
	q.maybeCompact()
}

// Contains informa se a aposta está na fila.
func (q *Queue) Contains(betID int64) bool {
	_, ok := q.index[betID]
	return ok
}

// PositionOf retorna a posição 0-based na ordem de entrada, ou false se a
// aposta não está na fila.
func (q *Queue) PositionOf(betID int64) (int, bool) {
	slot, ok := q.index[betID]
	if !ok {
		return 0, false
	}
	deadBefore := sort.SearchInts(q.dead, slot)
	return slot - q.head - deadBefore, true
}

// Len retorna o número de apostas na fila.
func (q *Queue) Len() int {
	return len(q.ids) - q.head - len(q.dead)
}

// InOrder produz os ids em ordem FIFO. A sequência é tirada de um snapshot:
// reiniciável e segura contra remoções durante o dreno.
func (q *Queue) InOrder() iter.Seq[int64] {
	snapshot := q.snapshot()
	return func(yield func(int64) bool) {
		for _, id := range snapshot {
			if !yield(id) {
				return
			}
		}
	}
}

func (q *Queue) snapshot() []int64 {
	out := make([]int64, 0, q.Len())
	for slot := q.head; slot < len(q.ids); slot++ {
		id := q.ids[slot]
		if s, ok := q.index[id]; ok && s == slot {
			out = append(out, id)
		}
	}
	return out
}

// skipDead avança a cabeça por cima de tombstones consecutivos.
func (q *Queue) skipDead() {
	for len(q.dead) > 0 && q.dead[0] == q.head {
		q.dead = q.dead[1:]
		q.head++
	}
}

// maybeCompact reconstrói o slice quando mais da metade virou lixo.
func (q *Queue) maybeCompact() {
	garbage := q.head + len(q.dead)
	if garbage < 64 || garbage <= len(q.ids)/2 {
		return
	}
	live := q.snapshot()
	q.ids = live
	q.head = 0
	q.dead = nil
	for slot, id := range live {
		q.index[id] = slot
	}
}
