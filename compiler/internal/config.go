package internal

import (
	"errors"
	"fmt"
	"os"
)

// Config holds the driver settings. The CLI fills it from flags; nothing is
// read from the environment or from files.
type Config struct {
	OutputPath string
	Grammar    Grammar
	Assembler  string
	Linker     string
	// WorkDir is the parent of each run's private intermediate directory.
	WorkDir           string
	KeepIntermediates bool
	EmitAsmOnly       bool
	Verbose           bool
	NoColor           bool
}

func DefaultConfig() *Config {
	return &Config{
		OutputPath: "a.out",
		Grammar:    ExactGrammar,
		Assembler:  "nasm",
		Linker:     "ld",
		WorkDir:    os.TempDir(),
	}
}

func (c *Config) Validate() error {
	if _, err := ParseGrammar(string(c.Grammar)); err != nil {
		return err
	}
	if c.OutputPath == "" {
		return errors.New("output path must not be empty")
	}
	if c.Assembler == "" || c.Linker == "" {
		return fmt.Errorf("assembler and linker must be set (got %q, %q)", c.Assembler, c.Linker)
	}
	return nil
}
