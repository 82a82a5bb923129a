// Command classflow runs the whole-program type propagation analyzer
// over a compiled image and prints the resulting type database as JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/emberlang/classflow/internal/cache"
	"github.com/emberlang/classflow/internal/config"
	"github.com/emberlang/classflow/internal/image"
	"github.com/emberlang/classflow/internal/propagation"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*propagation.InvariantError); ok {
				fmt.Fprintf(os.Stderr, "classflow: internal invariant violated: %v\n", r)
			} else {
				fmt.Fprintf(os.Stderr, "classflow: internal error: %v\n", r)
			}
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	log.SetFlags(0)
	log.SetPrefix("classflow: ")

	var (
		configPath = flag.String("config", "", "path to a YAML configuration file")
		threshold  = flag.Int("threshold", 0, "override the megamorphic specialization threshold (0 keeps the config/default value)")
		cacheDir   = flag.String("cache-dir", "", "override the config's cache directory; empty disables caching")
		debugTypes = flag.Bool("debug-types", false, "trace the dequeue loop and dump per-method argument types to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <image.json>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *threshold > 0 {
		cfg.MegamorphicThreshold = *threshold
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *debugTypes {
		cfg.Debug = true
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	program, err := image.LoadFixture(data)
	if err != nil {
		log.Fatal(err)
	}

	store, err := cache.Open(cfg.CacheDir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	digest := cache.Digest(program.Bytecodes(), cfg.MegamorphicThreshold)
	if hit, err := store.Lookup(digest); err == nil {
		os.Stdout.Write(hit)
		os.Stdout.Write([]byte("\n"))
		return
	}

	opts := propagation.Options{}
	if cfg.Debug {
		opts.Trace = traceWriter()
	}

	propagator := propagation.NewPropagator(program, cfg, opts)
	database := propagator.Run()

	for _, entry := range propagator.Diagnostics() {
		log.Print(entry)
	}

	if cfg.Debug {
		dumpArgumentTypes(propagator, database)
	}

	result, err := database.AsJSON()
	if err != nil {
		log.Fatal(err)
	}

	if err := store.Store(digest, result); err != nil {
		log.Print(err)
	}

	os.Stdout.Write(result)
	os.Stdout.Write([]byte("\n"))
}

// dumpArgumentTypes prints each reachable method's merged per-parameter
// type sets to stderr, identified by its header bcp since the image
// carries no method names.
func dumpArgumentTypes(propagator *propagation.Propagator, database *propagation.TypeDatabase) {
	program := propagator.Program()
	for _, method := range database.Methods() {
		for i, arg := range database.Arguments(method) {
			banner := fmt.Sprintf("method@%d arg%d", method.HeaderBCP, i)
			fmt.Fprintln(os.Stderr, arg.Print(program, banner))
		}
	}
}

// traceWriter picks stderr for trace output; dimming each trace write
// is only worth the escape codes when stderr is an actual terminal
// rather than a redirected file or pipe.
func traceWriter() *tracer {
	colorize := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return &tracer{colorize: colorize}
}

type tracer struct {
	colorize bool
}

func (t *tracer) Write(p []byte) (int, error) {
	if !t.colorize {
		return os.Stderr.Write(p)
	}
	const dim = "\x1b[2m"
	const reset = "\x1b[0m"
	os.Stderr.WriteString(dim)
	n, err := os.Stderr.Write(p)
	os.Stderr.WriteString(reset)
	return n, err
}
