package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"stumpc/pkg/compiler"
	"stumpc/pkg/cpu"
	"stumpc/pkg/utils"
)

// printState dumps the registers and flags after a run.
func printState(vm *cpu.CPU) {
	fmt.Printf("halted=%t steps=%d PC=0x%04X SP=0x%04X N=%t Z=%t V=%t C=%t\n",
		vm.Halted, vm.Steps, vm.Regs[cpu.RegPC], vm.Regs[cpu.RegSP], vm.N, vm.Z, vm.V, vm.C)
	for r := 1; r <= 5; r++ {
		fmt.Printf("R%d=0x%04X (%d)\n", r, vm.Regs[r], int16(vm.Regs[r]))
	}
}

func main() {
	showAsm := flag.Bool("show-asm", false, "print the generated assembly")
	steps := flag.Int("steps", 1_000_000, "instruction budget, 0 for no limit")
	snapshot := flag.String("snapshot", "", "write the final machine state to this file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-show-asm] [-steps n] [-snapshot path] <file.stump>\n", os.Args[0])
		os.Exit(2)
	}

	fullPath, baseDir, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to resolve path: %v", err)
	}
	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	log.Printf("Compiling source file: %s", fullPath)
	log.Printf("Base directory: %s", baseDir)

	asm, machineCode, err := compiler.Compile(string(sourceBytes))
	if err != nil {
		if asm != nil {
			log.Print(*asm)
		}
		log.Fatalf("Compilation failed: %v", err)
	}

	if *showAsm {
		fmt.Print("Generated Assembly:\n", *asm, "\n")
	}

	vm := cpu.NewCPU()
	if err := vm.Load(machineCode); err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	runErr := vm.Run(*steps)
	printState(vm)

	if *snapshot != "" {
		if err := vm.HibernateToFile(*snapshot); err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		log.Printf("Snapshot written to %s", *snapshot)
	}
	if runErr != nil {
		log.Fatalf("Run failed: %v", runErr)
	}
	fmt.Printf("main returned %d\n", int16(vm.Regs[1]))
}
