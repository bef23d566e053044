package coordsys

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type detectRange struct {
	sys                  System
	firstMin, firstMax   float64
	secondMin, secondMax float64
}

// 识别范围按 (纬度/北, 经度/东) 给出；按顺序匹配
var detectRanges = []detectRange{
	{WGS84, 50, 70, 5, 30},
	{RT90, 6_000_000, 7_700_000, 1_200_000, 1_900_000},
	{SWEREF99, 6_100_000, 7_750_000, 250_000, 950_000},
}

// Detect：按数值量级识别坐标系；无匹配时返回 ErrUnknownFormat，不做猜测
func Detect(p Pair) (System, error) {
	for _, r := range detectRanges {
		if p.First >= r.firstMin && p.First <= r.firstMax && p.Second >= r.secondMin && p.Second <= r.secondMax {
			return r.sys, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, p.Format(WGS84))
}

// 文档注释：解析自由文本坐标
// 背景：接受 "59.3293, 18.0686"、"59.3293 18.0686"、"6580000;1628000" 以及空白分隔的小数逗号 "59,3293 18,0686"。
// 返回：展示顺序的坐标对与识别出的坐标系。
func Parse(text string) (Pair, System, error) {
	p, err := ParsePair(text)
	if err != nil {
		return Pair{}, "", err
	}
	s, err := Detect(p)
	if err != nil {
		return Pair{}, "", err
	}
	return p, s, nil
}

// ParsePair：只解析数值，不识别坐标系（调用方显式给出坐标系时使用）
func ParsePair(text string) (Pair, error) {
	a, b, err := splitPair(text)
	if err != nil {
		return Pair{}, err
	}
	return Pair{First: a, Second: b}, nil
}

func splitPair(text string) (float64, float64, error) {
	t := strings.TrimSpace(text)
	var parts []string
	if fs := strings.FieldsFunc(t, unicode.IsSpace); len(fs) == 2 {
		parts = []string{strings.TrimRight(fs[0], ",;"), fs[1]}
		for i := range parts {
			parts[i] = strings.ReplaceAll(parts[i], ",", ".")
		}
	} else {
		parts = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' })
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFormat, text)
	}
	a, err1 := strconv.ParseFloat(parts[0], 64)
	b, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownFormat, text)
	}
	return a, b, nil
}
