// 包 sheet：表格文件（xlsx/csv）与批处理行之间的转换
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sverigekartan/internal/batch"

	"github.com/xuri/excelize/v2"
)

// ReadFile：按扩展名读取 .csv/.txt 或 xlsx
func ReadFile(path string) ([]batch.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read：name 仅用于判断格式；首行为表头，空行跳过
func Read(r io.Reader, name string) ([]batch.Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return readCSV(r)
	default:
		return readXLSX(r)
	}
}

func readXLSX(r io.Reader) ([]batch.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheets[0], err)
	}
	return toRows(grid)
}

// readCSV：自动识别分号或逗号分隔（瑞典区域设置常用分号）
func readCSV(r io.Reader) ([]batch.Row, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.Comma = sniffDelimiter(b)
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(grid)
}

func sniffDelimiter(b []byte) rune {
	line := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		line = b[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// toRows：首个非空行为表头；没有任何非空行时返回零行且不报错
func toRows(grid [][]string) ([]batch.Row, error) {
	for len(grid) > 0 && blank(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) == 0 {
		return nil, nil
	}
	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			header[i] = fmt.Sprintf("kolumn%d", i+1)
		}
	}
	var out []batch.Row
	for _, cells := range grid[1:] {
		if blank(cells) {
			continue
		}
		out = append(out, batch.NewRow(header, cells))
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
