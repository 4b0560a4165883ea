package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rmax-ai/pganomaly/pkg/store"
)

// writeCSV renders a header and rows into a reader.
func writeCSV(headers []string, rows [][]string) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write rows: %w", err)
	}
	return buf, nil
}

// chronological sorts events oldest first; the store returns newest first.
func chronological(events []*store.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TsEvent.Before(events[j].TsEvent)
	})
}

func itoa[T ~int | ~int64 | ~uint64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}
