package metrics

import "sync/atomic"

// ErrorCounters は実行全体のput/get失敗数を累積する。実行中にリセットはしない
type ErrorCounters struct {
	put atomic.Uint64
	get atomic.Uint64
}

// NewErrorCounters はゼロのカウンタを作成する
func NewErrorCounters() *ErrorCounters {
	return &ErrorCounters{}
}

// IncPut は失敗したputを1件記録する
func (c *ErrorCounters) IncPut() {
	c.put.Add(1)
}

// IncGet は失敗または欠落したgetを1件記録する
func (c *ErrorCounters) IncGet() {
	c.get.Add(1)
}

// PutErrors は累積のput失敗数を返す
func (c *ErrorCounters) PutErrors() uint64 {
	return c.put.Load()
}

// GetErrors は累積のget失敗数を返す
func (c *ErrorCounters) GetErrors() uint64 {
	return c.get.Load()
}
