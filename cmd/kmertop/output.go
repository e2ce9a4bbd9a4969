package main

import (
	"fmt"
	"io"

	"github.com/jcalabro/kmertop"
)

// writeRecords prints records one per line, as "TOKEN: COUNT" for text or
// tab-separated for tsv.
func writeRecords(w io.Writer, format string, records []kmertop.Record) error {
	layout := "%s: %d\n"
	if format == formatTSV {
		layout = "%s\t%d\n"
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(w, layout, r.Token, r.Count); err != nil {
			return err
		}
	}
	return nil
}
