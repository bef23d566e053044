package sheet

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sverigekartan/internal/batch"
	"sverigekartan/internal/boundary"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// FileName：下载文件名
	FileName    = "geo-resultat.xlsx"
	ResultSheet = "Resultat"
	InfoSheet   = "Info"
)

// Provenance：Info 工作表中的数据来源说明
type Provenance struct {
	Layers        []boundary.Layer
	LoadedAt      time.Time
	GeocodeSource string
}

// 文档注释：写出结果工作簿
// 背景：Resultat 工作表按固定列顺序写出全部行，Info 工作表记录数据来源与批次统计。
// 约束：没有数据行时返回 batch.ErrEmptyBatch，不写出任何内容。
func Write(w io.Writer, res *batch.Result, prov Provenance) error {
	if res == nil || len(res.Rows) == 0 {
		return batch.ErrEmptyBatch
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ResultSheet); err != nil {
		return err
	}
	if err := writeRow(f, ResultSheet, 1, stringsToCells(res.Columns)); err != nil {
		return err
	}
	for i, r := range res.Rows {
		cells := make([]interface{}, len(res.Columns))
		for j, c := range r.Cells(res.Columns) {
			cells[j] = c
			if res.Columns[j] == batch.ColID {
				if n, err := strconv.Atoi(c); err == nil {
					cells[j] = n
				}
			}
		}
		if err := writeRow(f, ResultSheet, i+2, cells); err != nil {
			return err
		}
	}
	if _, err := f.NewSheet(InfoSheet); err != nil {
		return err
	}
	for i, kv := range infoRows(res, prov) {
		if err := writeRow(f, InfoSheet, i+1, []interface{}{kv[0], kv[1]}); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteFile：写出到本地文件；空批次不创建文件
func WriteFile(path string, res *batch.Result, prov Provenance) error {
	if res == nil || len(res.Rows) == 0 {
		return batch.ErrEmptyBatch
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(out, res, prov); err != nil {
		out.Close()
		_ = os.Remove(path)
		return err
	}
	return out.Close()
}

func infoRows(res *batch.Result, prov Provenance) [][2]string {
	rows := [][2]string{
		{"Fält", "Värde"},
		{"Körning", res.RunID},
		{"Skapad", res.StartedAt.Format(time.RFC3339)},
		{"Rader", strconv.Itoa(res.Stats.Total)},
		{"Fullständig träff", strconv.Itoa(res.Stats.Matched)},
		{"Utanför förväntat intervall", strconv.Itoa(res.Stats.OutOfRange)},
		{"Ingen polygonträff", strconv.Itoa(res.Stats.NoMatch)},
		{"Adressuppslag misslyckades", strconv.Itoa(res.Stats.GeocodeFailed)},
		{"Koordinatsystem", "WGS84 (EPSG:4326), lat/lon i decimalgrader"},
	}
	if !prov.LoadedAt.IsZero() {
		rows = append(rows, [2]string{"Gränsdata laddad", prov.LoadedAt.Format(time.RFC3339)})
	}
	for _, l := range prov.Layers {
		rows = append(rows, [2]string{"Lager " + l.Kind, fmt.Sprintf("%s (attribut %s)", l.Source, l.AttributeKey)})
	}
	src := prov.GeocodeSource
	if src == "" {
		src = "Avstängd"
	}
	rows = append(rows, [2]string{"Adresskälla", src})
	return rows
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func stringsToCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
