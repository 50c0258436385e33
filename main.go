package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"stumpc/pkg/asm"
	"stumpc/pkg/compiler"
	"stumpc/pkg/cpu"
	"stumpc/pkg/utils"
)

func main() {
	inPath := flag.String("in", "", "input file: STUMP assembly (.s) or source (.stump)")
	outPath := flag.String("out", "", "output binary file path (default: input with .bin extension)")
	runProgram := flag.Bool("run", false, "run the generated binary file on the STUMP machine")
	runBinPath := flag.String("run-bin", "", "run an existing binary file on the STUMP machine")
	resumePath := flag.String("resume", "", "continue a machine snapshot written by -dump")
	dumpPath := flag.String("dump", "", "write a machine snapshot after the run")
	maxSteps := flag.Int("steps", 1_000_000, "instruction budget for a run, 0 for no limit")
	flag.Parse()

	runSources := 0
	for _, set := range []bool{*runProgram, *runBinPath != "", *resumePath != ""} {
		if set {
			runSources++
		}
	}
	if runSources > 1 {
		fmt.Fprintln(os.Stderr, "use only one of -run, -run-bin and -resume")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		source, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
			os.Exit(1)
		}

		var code []byte
		if strings.HasSuffix(*inPath, ".stump") {
			_, code, err = compiler.Compile(string(source))
			if err != nil {
				fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
				os.Exit(1)
			}
		} else {
			code, _, err = asm.Assemble(string(source))
			if err != nil {
				fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
				os.Exit(1)
			}
		}

		output := *outPath
		if output == "" {
			output = utils.ReplaceExt(*inPath, ".bin")
		}
		if err := os.WriteFile(output, code, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write binary file %q: %v\n", output, err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d words -> %s\n", len(code)/2, output)
		assembledOutput = output
	}

	if *inPath == "" && runSources == 0 {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run the output, -run-bin <file> or -resume <snapshot>")
		flag.Usage()
		os.Exit(2)
	}

	vm := cpu.NewCPU()
	target := ""
	switch {
	case *resumePath != "":
		target = *resumePath
		if err := vm.RestoreFromFile(target); err != nil {
			fmt.Fprintf(os.Stderr, "restore failed for %q: %v\n", target, err)
			os.Exit(1)
		}
	case *runBinPath != "":
		target = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		target = assembledOutput
	default:
		return
	}

	if *resumePath == "" {
		if err := loadBinary(vm, target); err != nil {
			fmt.Fprintf(os.Stderr, "load failed for %q: %v\n", target, err)
			os.Exit(1)
		}
	}

	runErr := vm.Run(*maxSteps)
	fmt.Printf(
		"run complete (%s): halted=%t steps=%d PC=0x%04X SP=0x%04X N=%t Z=%t V=%t C=%t R1=0x%04X R2=0x%04X R3=0x%04X\n",
		target,
		vm.Halted,
		vm.Steps,
		vm.Regs[cpu.RegPC],
		vm.Regs[cpu.RegSP],
		vm.N,
		vm.Z,
		vm.V,
		vm.C,
		vm.Regs[1],
		vm.Regs[2],
		vm.Regs[3],
	)

	if *dumpPath != "" {
		if err := vm.HibernateToFile(*dumpPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write snapshot %q: %v\n", *dumpPath, err)
			os.Exit(1)
		}
		fmt.Printf("snapshot -> %s\n", *dumpPath)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", target, runErr)
		os.Exit(1)
	}
}

func loadBinary(vm *cpu.CPU, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return vm.Load(image)
}
