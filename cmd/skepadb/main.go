// Command skepadb is the line-oriented REPL for skepa-db (spec §6 "CLI
// surface"): it reads statements terminated by `;`, executes them against
// an Engine, and prints row counts, result sets, or `Kind: message` errors.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"skepadb/config"
	"skepadb/dberr"
	"skepadb/engine"
	"skepadb/parser"
	"skepadb/version"
)

func main() {
	cfg := config.Parse()

	eng, err := engine.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.DataDir, err)
	}
	defer eng.Close()
	eng.SetFsync(cfg.Fsync)

	fmt.Fprintln(os.Stdout, version.String())

	if cfg.CheckpointInterval > 0 {
		go checkpointLoop(eng, cfg.CheckpointInterval)
	}

	repl(eng, os.Stdin, os.Stdout)
}

func checkpointLoop(eng *engine.Engine, interval time.Duration) {
	for range time.Tick(interval) {
		if err := eng.Checkpoint(); err != nil {
			log.Printf("checkpoint: %v", err)
		}
	}
}

func repl(eng *engine.Engine, in *os.File, out *os.File) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buf strings.Builder
	fmt.Fprint(out, "skepa-db> ")
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if buf.Len() == 0 {
			switch strings.ToLower(trimmed) {
			case "exit", "quit":
				return
			case "help":
				printHelp(out)
				fmt.Fprint(out, "skepa-db> ")
				continue
			case "show memory", "show memory;":
				printStats(eng, out)
				fmt.Fprint(out, "skepa-db> ")
				continue
			case "":
				fmt.Fprint(out, "skepa-db> ")
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.HasSuffix(trimmed, ";") {
			fmt.Fprint(out, "      -> ")
			continue
		}

		runStatement(eng, buf.String(), out)
		buf.Reset()
		fmt.Fprint(out, "skepa-db> ")
	}
	fmt.Fprintln(out)
}

func runStatement(eng *engine.Engine, text string, out *os.File) {
	parsed, err := parser.ParseStatement(text)
	if err != nil {
		printError(out, err)
		return
	}
	result, err := eng.Execute(parsed)
	if err != nil {
		printError(out, err)
		return
	}
	printResult(out, result)
}

func printResult(out *os.File, result engine.Result) {
	if result.Columns == nil {
		fmt.Fprintf(out, "%d rows affected\n", result.RowsAffected)
		return
	}
	fmt.Fprintln(out, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(out, "(%d rows)\n", len(result.Rows))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// printStats implements the "show memory" REPL command — a diagnostic,
// not a parsed SQL statement.
func printStats(eng *engine.Engine, out *os.File) {
	fmt.Fprintln(out, "table\tkind\tname\tbytes\thuman")
	var total uint64
	for _, ts := range eng.Stats() {
		fmt.Fprintf(out, "%s\theap\t%s\t%d\t%s\n", ts.Table, ts.Table, ts.HeapBytes, humanize.Bytes(uint64(ts.HeapBytes)))
		total += uint64(ts.HeapBytes)
		for _, is := range ts.Indexes {
			fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\n", ts.Table, is.Kind, is.Name, is.Bytes, humanize.Bytes(uint64(is.Bytes)))
			total += uint64(is.Bytes)
		}
	}
	fmt.Fprintf(out, "\ttotal\t\t%d\t%s\n", total, humanize.Bytes(total))
}

func printError(out *os.File, err error) {
	fmt.Fprintf(out, "%s: %s\n", dberr.KindOf(err), err.Error())
}

func printHelp(out *os.File) {
	fmt.Fprintln(out, "skepa-db — a single-process, local, SQL-like relational database")
	fmt.Fprintln(out, "statements are terminated by ';'; multi-line input is supported")
	fmt.Fprintln(out, "commands: help, exit, quit, show memory")
	fmt.Fprintln(out, "statements: create table, alter table, create index, drop index,")
	fmt.Fprintln(out, "            insert, update, delete, select, begin, commit, rollback")
}
