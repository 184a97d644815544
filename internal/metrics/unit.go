package metrics

import (
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
)

// Unit は操作が報告した名前付きの値を集める
type Unit struct {
	mu      sync.Mutex
	results map[string][]int64
}

// NewUnit は空のUnitを作成する
func NewUnit() *Unit {
	return &Unit{results: make(map[string][]int64)}
}

// AppendResult はnameにvalueを記録する
func (u *Unit) AppendResult(name string, value int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results[name] = append(u.results[name], value)
}

// Results はnameの値のコピーを返す
func (u *Unit) Results(name string) []int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int64(nil), u.results[name]...)
}

// Names は記録された名前をソートして返す
func (u *Unit) Names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	names := make([]string, 0, len(u.results))
	for name := range u.results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary は1つの名前の値の分布
type Summary struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P99   float64 `json:"p99"`
}

// Summarize はnameの集計を返す。記録がなければfalse
func (u *Unit) Summarize(name string) (Summary, bool) {
	values := u.Results(name)
	if len(values) == 0 {
		return Summary{}, false
	}
	data := make(stats.Float64Data, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	s := Summary{Name: name, Count: len(values)}
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Mean, _ = stats.Mean(data)
	s.P50, _ = stats.PercentileNearestRank(data, 50)
	s.P99, _ = stats.PercentileNearestRank(data, 99)
	return s, true
}

// Summaries は全ての名前の集計を返す
func (u *Unit) Summaries() []Summary {
	var out []Summary
	for _, name := range u.Names() {
		if s, ok := u.Summarize(name); ok {
			out = append(out, s)
		}
	}
	return out
}
