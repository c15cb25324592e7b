// Command vesper is a minimal embedder for the Vesper VM core: it
// assembles a tiny textual bytecode format into a Program, runs it on a
// fresh Process, and prints the resulting InterruptKind.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vesper/vm"
	"vesper/vm/config"
)

func main() {
	configDir := flag.String("config", "", "directory containing vesper.toml (defaults built in if omitted)")
	heapLimit := flag.Int("heap", 0, "override the configured initial heap budget (allocation units)")
	argsFlag := flag.String("args", "", "comma-separated Smi arguments to pass the entry function")
	verbose := flag.Bool("v", false, "log at debug level")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vesper [options] <program.vasm>\n\n")
		fmt.Fprintf(os.Stderr, "Assembles a toplevel function from a tiny textual bytecode format,\n")
		fmt.Fprintf(os.Stderr, "runs it on a fresh Process, and prints the resulting InterruptKind.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  vesper -args 10,32 ./testdata/add.vasm\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	closeLog, err := vm.ConfigureLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	asm, err := assembleProgram(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble %s: %v\n", path, err)
		os.Exit(1)
	}

	args, err := parseArgs(*argsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "-args: %v\n", err)
		os.Exit(1)
	}

	program := vm.NewStandardProgram()
	if cfg.Natives.EnableGrpc {
		program.RegisterNative(0, vm.NativeGrpcInvoke)
	}
	entry := vm.NewFunction("entry", len(args), asm.frameSize)
	program.AppendFunction(entry, asm.code)
	program.Finalize()

	heap := cfg.Heap.InitialObjects
	if *heapLimit > 0 {
		heap = *heapLimit
	}
	process := vm.NewProcess(program, heap)
	interp := vm.NewInterpreter(process, vm.SmiFastEngine{})

	result, outcome := interp.Run(entry, args)
	fmt.Printf("%s\n", outcome)
	if outcome == vm.InterruptReady && result.IsSmi() {
		fmt.Printf("result: %d\n", result.SmiValue())
		os.Exit(0)
	}
	if outcome != vm.InterruptReady {
		os.Exit(1)
	}
}

func loadConfig(dir string) (*config.Config, error) {
	if dir == "" {
		return config.Default(), nil
	}
	return config.Load(dir)
}

func parseArgs(s string) ([]vm.Value, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]vm.Value, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", p, err)
		}
		v, ok := vm.TrySmi(n)
		if !ok {
			return nil, fmt.Errorf("%d out of Smi range", n)
		}
		out = append(out, v)
	}
	return out, nil
}
