package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/genlower"
	"github.com/wippyai/genlower/expr"
	"github.com/wippyai/genlower/gendef"
	"github.com/wippyai/genlower/internal/rewrite"
	"github.com/wippyai/genlower/interp"
)

type options struct {
	file         string
	source       bool
	print        bool
	check        bool
	run          bool
	limit        int
	disposeAfter int
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Path to a YAML generator definition")
	flag.BoolVar(&opts.source, "source", false, "Print the definition before lowering")
	flag.BoolVar(&opts.print, "print", true, "Print the lowered tree and its fingerprint")
	flag.BoolVar(&opts.check, "check", false, "Only report structural violations")
	flag.BoolVar(&opts.run, "run", false, "Evaluate the lowered tree and print the produced values")
	flag.IntVar(&opts.limit, "limit", 0, "Stop after this many values (0 drains)")
	flag.IntVar(&opts.disposeAfter, "dispose-after", -1, "Dispose the generator after this many values")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging to stderr")
	interactive := flag.Bool("i", false, "Interactive stepper")
	flag.Parse()

	if opts.file == "" && flag.NArg() == 1 {
		opts.file = flag.Arg(0)
	}
	if opts.file == "" {
		fmt.Fprintln(os.Stderr, "Usage: genlower -file <def.yaml> [-source] [-print] [-run] [-limit n] [-dispose-after n] [-v]")
		fmt.Fprintln(os.Stderr, "       genlower -file <def.yaml> -check")
		fmt.Fprintln(os.Stderr, "       genlower -file <def.yaml> -i  (interactive stepper)")
		os.Exit(1)
	}

	log := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = l
		interp.SetLogger(l)
		rewrite.SetLogger(l)
	}
	defer func() { _ = log.Sync() }()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(opts.file, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(opts, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// heading renders section titles, styled only when stdout is a terminal.
func heading(s string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return "--- " + s + " ---"
	}
	return titleStyle.Render(s)
}

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

// session is a loaded and lowered definition.
type session struct {
	host *gendef.Host
	def  *expr.Generator
	res  *genlower.Result
	tree any
}

func load(file string, log *zap.Logger) (*session, error) {
	host := gendef.NewHost()
	def, err := gendef.Load(file, host)
	if err != nil {
		return nil, err
	}
	res, err := genlower.Lower(def, genlower.Config{Logger: log, Asserts: true})
	if err != nil {
		return nil, err
	}
	return &session{host: host, def: def, res: res}, nil
}

// start evaluates the lowered tree and returns a fresh generator.
func (s *session) start() (*interp.Generator, error) {
	if s.tree == nil {
		prog, err := interp.Compile(s.res.Tree)
		if err != nil {
			return nil, err
		}
		v, err := prog.Run()
		if err != nil {
			return nil, err
		}
		s.tree = v
	}
	return interp.AsGenerator(s.tree)
}

func run(opts options, log *zap.Logger) error {
	if opts.check {
		host := gendef.NewHost()
		def, err := gendef.Load(opts.file, host)
		if err != nil {
			return err
		}
		if err := genlower.Check(def); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", opts.file)
		return nil
	}

	s, err := load(opts.file, log)
	if err != nil {
		return err
	}

	if opts.source {
		fmt.Println(heading("definition"))
		fmt.Println(expr.Format(s.def))
	}
	if opts.print {
		fmt.Println(heading("lowered"))
		fmt.Println(expr.Format(s.res.Tree))
		fmt.Printf("\nstates: %d  hoisted: %d  temps: %d  fingerprint: %016x\n",
			s.res.States, len(s.res.Hoisted), len(s.res.Temps), expr.Fingerprint(s.res.Tree))
	}
	if !opts.run {
		return nil
	}

	g, err := s.start()
	if err != nil {
		return err
	}
	limit := opts.limit
	if opts.disposeAfter >= 0 {
		limit = opts.disposeAfter
	}

	var values []string
	var runErr error
	if opts.disposeAfter != 0 {
		vals, err := interp.Collect(g, limit)
		for _, v := range vals {
			values = append(values, interp.Stringify(v))
		}
		runErr = err
	}
	if runErr == nil && opts.disposeAfter >= 0 {
		runErr = g.Dispose()
	}

	fmt.Println(heading("values"))
	fmt.Println(strings.Join(values, "\n"))
	if len(s.host.Log) > 0 {
		fmt.Println(heading("log"))
		for _, entry := range s.host.Log {
			fmt.Println(interp.Stringify(entry))
		}
	}
	return runErr
}
