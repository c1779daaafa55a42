package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	quell "github.com/quelldb/quell"
	"github.com/quelldb/quell/internal"
	"github.com/quelldb/quell/internal/record"
	"github.com/quelldb/quell/internal/sql/value"
	"github.com/quelldb/quell/internal/storage/memstore"
)

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" || h.path == "" {
		return nil
	}
	stmt = compactOneLine(stmt)

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, stmt); err != nil {
		return err
	}
	h.lines = append(h.lines, stmt)
	return nil
}

func (h *History) Print(last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	start := len(h.lines) - last
	if start < 0 {
		start = 0
	}
	for i := start; i < len(h.lines); i++ {
		fmt.Printf("%5d  %s\n", i+1, h.lines[i])
	}
}

func compactOneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// ---- REPL helpers ----

// statementComplete checks for a terminating ';' outside single quotes.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		if r == '\'' {
			inQuote = !inQuote
			continue
		}
		if r == ';' && !inQuote {
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") ||
		line == "quit" || line == "exit"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".quell_history"
	}
	return filepath.Join(home, ".quell_history")
}

// seed loads a small demo dataset so SELECTs have something to chew on.
func seed(store *memstore.Store) error {
	movies := record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt64},
		{Name: "title", Type: record.ColText},
		{Name: "studio_id", Type: record.ColInt64},
		{Name: "released", Type: record.ColInt64},
		{Name: "rating", Type: record.ColFloat64, Nullable: true},
	}}
	if err := store.CreateTable("movies", movies); err != nil {
		return err
	}
	studios := record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt64},
		{Name: "name", Type: record.ColText},
	}}
	if err := store.CreateTable("studios", studios); err != nil {
		return err
	}

	for _, row := range []record.Row{
		{value.Integer(1), value.String("Stalker"), value.Integer(1), value.Integer(1979), value.Float(8.2)},
		{value.Integer(2), value.String("Sicario"), value.Integer(2), value.Integer(2015), value.Float(7.6)},
		{value.Integer(3), value.String("Primer"), value.Integer(3), value.Integer(2004), value.Float(6.9)},
		{value.Integer(4), value.String("Heat"), value.Integer(4), value.Integer(1995), value.Float(8.2)},
		{value.Integer(5), value.String("The Fountain"), value.Integer(4), value.Integer(2006), value.Null()},
		{value.Integer(6), value.String("Solaris"), value.Integer(1), value.Integer(1972), value.Float(8.1)},
		{value.Integer(7), value.String("Gravity"), value.Integer(4), value.Integer(2013), value.Float(7.7)},
		{value.Integer(8), value.String("Blindspotting"), value.Integer(2), value.Integer(2018), value.Float(7.4)},
		{value.Integer(9), value.String("Birdman"), value.Integer(4), value.Integer(2014), value.Float(7.7)},
		{value.Integer(10), value.String("Inception"), value.Integer(4), value.Integer(2010), value.Float(8.8)},
	} {
		if err := store.Insert("movies", row); err != nil {
			return err
		}
	}
	for _, row := range []record.Row{
		{value.Integer(1), value.String("Mosfilm")},
		{value.Integer(2), value.String("Lionsgate")},
		{value.Integer(3), value.String("StudioCanal")},
		{value.Integer(4), value.String("Warner Bros")},
	} {
		if err := store.Insert("studios", row); err != nil {
			return err
		}
	}
	return nil
}

func runStatement(engine *quell.Engine, stmt string) {
	stmt = strings.TrimSuffix(strings.TrimSpace(stmt), ";")
	switch {
	case strings.HasPrefix(stmt, "\\ast "):
		explain(engine, strings.TrimPrefix(stmt, "\\ast "), func(e *quell.Explanation) string { return e.AST })
	case strings.HasPrefix(stmt, "\\plan "):
		explain(engine, strings.TrimPrefix(stmt, "\\plan "), func(e *quell.Explanation) string { return e.Plan })
	case strings.HasPrefix(stmt, "\\opt "):
		explain(engine, strings.TrimPrefix(stmt, "\\opt "), func(e *quell.Explanation) string { return e.Optimized })
	default:
		res, err := engine.Query(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Print(res.String())
		fmt.Printf("(%d rows)\n", len(res.Rows))
	}
}

func explain(engine *quell.Engine, sql string, pick func(*quell.Explanation) string) {
	exp, err := engine.Explain(sql)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(pick(exp))
}

func main() {
	var (
		cfgPath    = flag.String("config", "", "config file (yaml)")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = flag.String("c", "", "execute one SQL statement and exit")
	)
	flag.Parse()

	cfg := internal.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := internal.LoadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	store := memstore.New()
	if err := seed(store); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	engine := quell.NewEngine(store, cfg)

	if strings.TrimSpace(*oneShotSQL) != "" {
		runStatement(engine, *oneShotSQL)
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quell> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder

	fmt.Println("quell: in-memory SQL. tables: movies, studios")
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("quell> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) && buf.Len() == 0 {
			switch {
			case line == "\\q" || line == "quit" || line == "exit":
				return
			case line == "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history               print history
  \ast <sql>             dump the parsed statement
  \plan <sql>            dump the naive plan
  \opt <sql>             dump the optimized plan
  \help                  show help

sql:
  SELECT only; end statements with ';' (multiline supported)`)
			case line == "\\history":
				h.Print(50)
			case strings.HasPrefix(line, "\\ast ") ||
				strings.HasPrefix(line, "\\plan ") ||
				strings.HasPrefix(line, "\\opt "):
				runStatement(engine, line)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !statementComplete(buf.String()) {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt("quell> ")

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		runStatement(engine, stmt)
	}
}
