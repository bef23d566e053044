package batch

import "strings"

// Row：有序的“列名 → 单元格文本”映射；Keys 保持列顺序
type Row struct {
	Keys   []string
	Values map[string]string
}

// NewRow：按表头与单元格构建一行；多出的单元格丢弃，缺少的单元格视为空串
func NewRow(header, cells []string) Row {
	r := Row{Keys: make([]string, 0, len(header)), Values: make(map[string]string, len(header))}
	for i, h := range header {
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		r.Set(h, v)
	}
	return r
}

// Get：精确匹配列名
func (r Row) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Lookup：忽略大小写与首尾空白匹配列名
func (r Row) Lookup(key string) (string, bool) {
	if v, ok := r.Values[key]; ok {
		return v, true
	}
	for _, k := range r.Keys {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return r.Values[k], true
		}
	}
	return "", false
}

// Set：新列追加到末尾，已有列原位覆盖
func (r *Row) Set(key, val string) {
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = val
}

// Cells：按给定列顺序取值
func (r Row) Cells(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.Values[c]
	}
	return out
}
