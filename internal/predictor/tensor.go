package predictor

import (
	"sync"
	"sync/atomic"
)

// TensorPool hands out fixed-width buffers for a single inference call.
// Every acquired Tensor must be released before the call returns; Live
// reports how many are currently outstanding.
type TensorPool struct {
	width int
	bufs  sync.Pool
	live  atomic.Int64
}

// NewTensorPool creates a pool of width-sized tensors.
func NewTensorPool(width int) *TensorPool {
	p := &TensorPool{width: width}
	p.bufs.New = func() interface{} {
		buf := make([]float32, width)
		return &buf
	}
	return p
}

// Acquire returns a zeroed tensor owned by the caller until Release.
func (p *TensorPool) Acquire() *Tensor {
	p.live.Add(1)
	return &Tensor{buf: p.bufs.Get().(*[]float32), pool: p}
}

// Live returns the number of acquired, unreleased tensors.
func (p *TensorPool) Live() int64 {
	return p.live.Load()
}

// Width returns the tensor length.
func (p *TensorPool) Width() int {
	return p.width
}

// Tensor is a call-scoped numeric buffer. It is not safe for concurrent use.
type Tensor struct {
	buf  *[]float32
	pool *TensorPool
}

// Data returns the backing slice, or nil after Release.
func (t *Tensor) Data() []float32 {
	if t.buf == nil {
		return nil
	}
	return *t.buf
}

// Release zeroes the buffer and returns it to the pool. Safe to call twice.
func (t *Tensor) Release() {
	if t.buf == nil {
		return
	}
	clear(*t.buf)
	t.pool.bufs.Put(t.buf)
	t.buf = nil
	t.pool.live.Add(-1)
}
