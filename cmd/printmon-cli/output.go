package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type outputMode struct {
	json bool
	w    io.Writer
}

func newOutput(cmd *cobra.Command, jsonOut bool) outputMode {
	return outputMode{json: jsonOut, w: cmd.OutOrStdout()}
}

func (o outputMode) printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("format json: %w", err)
	}
	fmt.Fprintln(o.w, string(data))
	return nil
}

func (o outputMode) table(rows [][]string) {
	w := tabwriter.NewWriter(o.w, 2, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}
