// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	datparser "github.com/saferwall/dat"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

var (
	all     bool
	verbose bool
	header  bool
	symbols bool
	code    bool
)

func isDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func dumpHeader(f *datparser.File) {
	fmt.Printf("Version:  %d\n", f.Version)
	fmt.Printf("Symbols:  %d\n", f.SymTable.Len())
	fmt.Printf("Code:     %d bytes at offset %#x\n", f.Code.Size, f.Code.Offset)
}

func dumpSymbols(f *datparser.File) {
	for i := 0; i < f.SymTable.Len(); i++ {
		sym, err := f.SymTable.GetByIndex(i)
		if err != nil {
			continue
		}
		name := sym.Name()
		if name == "" {
			name = "<anonymous>"
		}
		props := sym.Properties()
		line := fmt.Sprintf("%6d  %-10s %-24s count:%d flags:%s",
			i, sym.Kind(), name, props.Count(), props.Flags())
		if addr, err := sym.Address(); err == nil {
			line += fmt.Sprintf(" addr:%#x", addr)
		}
		fmt.Println(line)
	}
}

func dumpCode(f *datparser.File) {
	var pc uint32
	for pc < f.Code.Size {
		op, err := f.Code.InstructionAt(pc)
		if err != nil {
			fmt.Printf("%08x  db %#x\n", pc, op.Operator)
			pc += op.Size
			continue
		}
		fmt.Printf("%08x  %s\n", pc, op)
		pc += op.Size
	}
}

func parseDAT(filename string, cmd *cobra.Command) {
	if verbose {
		log.Printf("Processing filename %s", filename)
	}

	f, err := datparser.New(filename, &datparser.Options{})
	if err != nil {
		log.Printf("Error while opening file: %s, reason: %s", filename, err)
		return
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		log.Printf("Error while parsing file: %s, reason: %s", filename, err)
		return
	}

	wantHeader, _ := cmd.Flags().GetBool("header")
	wantSymbols, _ := cmd.Flags().GetBool("symbols")
	wantCode, _ := cmd.Flags().GetBool("code")
	wantAll, _ := cmd.Flags().GetBool("all")

	if wantHeader || wantAll {
		dumpHeader(f)
	}
	if wantSymbols || wantAll {
		dumpSymbols(f)
	}
	if wantCode || wantAll {
		dumpCode(f)
	}
}

func parse(cmd *cobra.Command, args []string) {
	filePath := args[0]

	// filePath points to a file.
	if !isDirectory(filePath) {
		parseDAT(filePath, cmd)

	} else {
		// filePath points to a directory,
		// walk recursively through all files.
		fileList := []string{}
		filepath.Walk(filePath, func(path string, f os.FileInfo, err error) error {
			if !isDirectory(path) {
				fileList = append(fileList, path)
			}
			return nil
		})

		for _, file := range fileList {
			parseDAT(file, cmd)
		}
	}
}

func main() {

	var rootCmd = &cobra.Command{
		Use:   "datdumper",
		Short: "A compiled Daedalus script parser",
		Long:  "A .DAT symbol table and bytecode dumper by Saferwall",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps the file",
		Long:  "Dumps the symbol table and the code segment of a compiled script",
		Args:  cobra.MinimumNArgs(1),
		Run:   parse,
	}

	// Init root command.
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	// Init flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v",
		env.Bool("DATDUMPER_VERBOSE"), "verbose output")
	dumpCmd.Flags().BoolVarP(&header, "header", "", false, "Dump file header")
	dumpCmd.Flags().BoolVarP(&symbols, "symbols", "", false, "Dump symbol table")
	dumpCmd.Flags().BoolVarP(&code, "code", "", false, "Disassemble the code segment")
	dumpCmd.Flags().BoolVarP(&all, "all", "", false, "Dump everything")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

}
